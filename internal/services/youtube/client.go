// Package youtube lists channel uploads through the YouTube Data API v3.
package youtube

import (
	"context"
	"strings"
	"time"

	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"tweetloom/internal/services"
)

const pageSize = 50

// Config captures the runtime settings for the YouTube Data API.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Metadata describes one discovered upload.
type Metadata struct {
	VideoID     string
	Title       string
	URL         string
	PublishedAt time.Time
}

// Channel describes the channel that owns the uploads.
type Channel struct {
	ExternalID string
	Title      string
}

// Client lists channel uploads.
type Client struct {
	svc *youtubeapi.Service
}

// NewClient constructs a discovery client. Extra options are appended after
// the configured ones, so tests can override the endpoint and HTTP client.
func NewClient(ctx context.Context, cfg Config, extra ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "discover", "init", "youtube api key required", nil)
	}
	opts := []option.ClientOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithEndpoint(base))
	}
	opts = append(opts, extra...)
	svc, err := youtubeapi.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "discover", "init", "create youtube service", err)
	}
	return &Client{svc: svc}, nil
}

// ResolveChannel looks up the channel and its uploads playlist. The reference
// may be a raw channel id (UC...) or an @handle.
func (c *Client) ResolveChannel(ctx context.Context, reference string) (Channel, string, error) {
	var empty Channel
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return empty, "", services.Wrap(services.ErrConfiguration, "discover", "resolve", "channel reference required", nil)
	}

	call := c.svc.Channels.List([]string{"contentDetails", "snippet"}).Context(ctx)
	if strings.HasPrefix(reference, "@") {
		call = call.ForHandle(reference)
	} else {
		call = call.Id(reference)
	}
	resp, err := call.Do()
	if err != nil {
		return empty, "", services.Wrap(services.ErrSourceUnavailable, "discover", "resolve", "channel "+reference, err)
	}
	if len(resp.Items) == 0 {
		return empty, "", services.Wrap(services.ErrNotFound, "discover", "resolve", "channel "+reference, nil)
	}

	item := resp.Items[0]
	channel := Channel{ExternalID: item.Id}
	if item.Snippet != nil {
		channel.Title = item.Snippet.Title
	}
	var uploads string
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		uploads = item.ContentDetails.RelatedPlaylists.Uploads
	}
	if uploads == "" {
		return empty, "", services.Wrap(services.ErrSourceUnavailable, "discover", "resolve", "channel "+reference+" has no uploads playlist", nil)
	}
	return channel, uploads, nil
}

// ListUploads pages through the uploads playlist and returns videos published
// after since, newest first as the API delivers them. A zero since returns
// everything; maxResults caps the total (0 means no cap).
func (c *Client) ListUploads(ctx context.Context, uploadsPlaylistID string, since time.Time, maxResults int) ([]Metadata, error) {
	var videos []Metadata
	pageToken := ""
	for {
		call := c.svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(uploadsPlaylistID).
			MaxResults(pageSize).
			PageToken(pageToken).
			Context(ctx)
		resp, err := call.Do()
		if err != nil {
			return nil, services.Wrap(services.ErrSourceUnavailable, "discover", "list", "playlist "+uploadsPlaylistID, err)
		}

		pageAllOlder := len(resp.Items) > 0
		for _, item := range resp.Items {
			video := Metadata{}
			if item.ContentDetails != nil {
				video.VideoID = item.ContentDetails.VideoId
			}
			if item.Snippet != nil {
				video.Title = item.Snippet.Title
				if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
					video.PublishedAt = t.UTC()
				}
			}
			if video.VideoID == "" {
				continue
			}
			video.URL = WatchURL(video.VideoID)
			if !since.IsZero() && !video.PublishedAt.After(since) {
				continue
			}
			pageAllOlder = false
			videos = append(videos, video)
			if maxResults > 0 && len(videos) >= maxResults {
				return videos, nil
			}
		}

		// Uploads come back newest first, so a page with nothing newer than
		// the watermark means the rest of the playlist is older too.
		if pageAllOlder && !since.IsZero() {
			return videos, nil
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			return videos, nil
		}
	}
}

// WatchURL returns the canonical watch page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
