package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeYouTube()
	c.normalizeTranscription()
	c.normalizeOpenAI()
	c.normalizeTwitter()
	c.normalizePrompts()
	c.normalizeSecrets()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PromptsDir) == "" {
		c.Paths.PromptsDir = defaultPromptsDir
	}
	if c.Paths.PromptsDir, err = expandPath(c.Paths.PromptsDir); err != nil {
		return fmt.Errorf("paths.prompts_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeYouTube() {
	if c.YouTube.APIKey == "" {
		if value, ok := os.LookupEnv("YOUTUBE_API_KEY"); ok {
			c.YouTube.APIKey = strings.TrimSpace(value)
		}
	}
	c.YouTube.BaseURL = strings.TrimSpace(c.YouTube.BaseURL)
	if c.YouTube.BaseURL == "" {
		c.YouTube.BaseURL = defaultYouTubeBaseURL
	}
	if c.YouTube.TimeoutSeconds <= 0 {
		c.YouTube.TimeoutSeconds = defaultYouTubeTimeout
	}
}

func (c *Config) normalizeTranscription() {
	if c.Transcription.APIKey == "" {
		if value, ok := os.LookupEnv("TRANSCRIPTION_API_KEY"); ok {
			c.Transcription.APIKey = strings.TrimSpace(value)
		}
	}
	c.Transcription.BaseURL = strings.TrimSpace(c.Transcription.BaseURL)
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultTranscriptionURL
	}
	c.Transcription.Language = strings.TrimSpace(c.Transcription.Language)
	if c.Transcription.Language == "" {
		c.Transcription.Language = defaultTranscriptLanguage
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscriptTimeout
	}
}

func (c *Config) normalizeOpenAI() {
	if c.OpenAI.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.OpenAI.APIKey = strings.TrimSpace(value)
		}
	}
	c.OpenAI.BaseURL = strings.TrimSpace(c.OpenAI.BaseURL)
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
	c.OpenAI.Model = strings.TrimSpace(c.OpenAI.Model)
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaultOpenAIModel
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = defaultOpenAITimeout
	}
}

func (c *Config) normalizeTwitter() {
	if c.Twitter.AccessToken == "" {
		if value, ok := os.LookupEnv("TWITTER_ACCESS_TOKEN"); ok {
			c.Twitter.AccessToken = strings.TrimSpace(value)
		}
	}
	c.Twitter.BaseURL = strings.TrimSpace(c.Twitter.BaseURL)
	if c.Twitter.BaseURL == "" {
		c.Twitter.BaseURL = defaultTwitterBaseURL
	}
	if c.Twitter.TimeoutSeconds <= 0 {
		c.Twitter.TimeoutSeconds = defaultTwitterTimeout
	}
}

func (c *Config) normalizePrompts() {
	c.Prompts.Template = strings.TrimSpace(c.Prompts.Template)
	if c.Prompts.Template == "" {
		c.Prompts.Template = defaultPromptTemplate
	}
	if c.Prompts.TweetCount <= 0 {
		c.Prompts.TweetCount = defaultTweetCount
	}
	c.Prompts.OutputLanguage = strings.TrimSpace(c.Prompts.OutputLanguage)
	if c.Prompts.OutputLanguage == "" {
		c.Prompts.OutputLanguage = defaultOutputLanguage
	}
	c.Prompts.LengthMode = strings.ToLower(strings.TrimSpace(c.Prompts.LengthMode))
	if c.Prompts.LengthMode == "" {
		c.Prompts.LengthMode = defaultLengthMode
	}
	if c.Prompts.MinChars <= 0 {
		c.Prompts.MinChars = defaultMinChars
	}
	if c.Prompts.MaxChars <= 0 {
		c.Prompts.MaxChars = defaultMaxChars
	}
}

func (c *Config) normalizeSecrets() {
	if c.Secrets.Passphrase == "" {
		if value, ok := os.LookupEnv("TWEETLOOM_SECRETS_PASSPHRASE"); ok {
			c.Secrets.Passphrase = value
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
