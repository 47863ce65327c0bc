package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validateOpenAI(); err != nil {
		return err
	}
	if err := c.validatePrompts(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if c.YouTube.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/tweetloom/config.toml"
		}
		return fmt.Errorf("youtube.api_key is required. Set YOUTUBE_API_KEY env var or edit %s (create with 'tweetloom config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateOpenAI() error {
	if c.OpenAI.APIKey == "" {
		return errors.New("openai.api_key is required. Set OPENAI_API_KEY env var or edit the config file")
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return errors.New("openai.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validatePrompts() error {
	switch c.Prompts.LengthMode {
	case "fixed", "range":
	default:
		return fmt.Errorf("prompts.length_mode must be \"fixed\" or \"range\", got %q", c.Prompts.LengthMode)
	}
	if c.Prompts.MaxChars > 280 {
		return errors.New("prompts.max_chars cannot exceed 280")
	}
	if c.Prompts.MinChars > c.Prompts.MaxChars {
		return errors.New("prompts.min_chars cannot exceed prompts.max_chars")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if err := ensurePositiveMap(map[string]int{
		"scheduler.ingestion_interval_minutes":  c.Scheduler.IngestionIntervalMinutes,
		"scheduler.publishing_interval_minutes": c.Scheduler.PublishingIntervalMinutes,
		"scheduler.items_per_run":               c.Scheduler.ItemsPerRun,
		"scheduler.max_attempts":                c.Scheduler.MaxAttempts,
		"scheduler.backoff_base_seconds":        c.Scheduler.BackoffBaseSeconds,
		"scheduler.stale_timeout_minutes":       c.Scheduler.StaleTimeoutMinutes,
		"scheduler.initial_lookback_days":       c.Scheduler.InitialLookbackDays,
		"scheduler.error_retry_interval":        c.Scheduler.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Scheduler.HeartbeatInterval <= 0 {
		return errors.New("scheduler.heartbeat_interval must be positive")
	}
	if c.Scheduler.HeartbeatTimeout <= 0 {
		return errors.New("scheduler.heartbeat_timeout must be positive")
	}
	if c.Scheduler.HeartbeatTimeout <= c.Scheduler.HeartbeatInterval {
		return errors.New("scheduler.heartbeat_timeout must be greater than scheduler.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
