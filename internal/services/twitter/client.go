// Package twitter posts tweets through the v2 API.
//
// Publishing is never retried inside the client. A request that times out
// may still have created the tweet, so retrying here risks double posts;
// the caller records the failure and the retry policy decides what happens
// on the next run.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"tweetloom/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Config captures the runtime settings for the publishing endpoint.
type Config struct {
	BaseURL        string
	AccessToken    string
	TimeoutSeconds int
}

// Client posts tweets on behalf of one account.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the OAuth2 HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a publishing client authenticated with the supplied
// OAuth2 bearer token.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "init", "access token required", nil)
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.twitter.com"
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), source)
	httpClient.Timeout = timeout

	client := &Client{
		baseURL:    base,
		httpClient: httpClient,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type createTweetRequest struct {
	Text string `json:"text"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Publish posts the tweet text and returns the platform tweet id.
func (c *Client) Publish(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrConfiguration, "publish", "create", "tweet text required", nil)
	}

	encoded, err := json.Marshal(createTweetRequest{Text: text})
	if err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "create", "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "create", "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "create", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "create", "read body", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrPublish, "publish", "create", apiErrorDetail(resp.StatusCode, body), nil)
	}

	var parsed createTweetResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "create", "decode response", err)
	}
	if parsed.Data.ID == "" {
		return "", services.Wrap(services.ErrPublish, "publish", "create", "response missing tweet id", nil)
	}
	return parsed.Data.ID, nil
}

func apiErrorDetail(status int, body []byte) string {
	var parsed createTweetResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		detail := strings.TrimSpace(parsed.Detail)
		if detail == "" {
			detail = strings.TrimSpace(parsed.Title)
		}
		if detail != "" {
			return fmt.Sprintf("http %d: %s", status, detail)
		}
	}
	return fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(body)))
}
