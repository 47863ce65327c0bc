package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"tweetloom/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeysAndExpandsPaths(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "yt-key")
	t.Setenv("OPENAI_API_KEY", "oa-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "tweetloom")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7533" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.YouTube.APIKey != "yt-key" {
		t.Fatalf("expected YouTube key from env, got %q", cfg.YouTube.APIKey)
	}
	if cfg.OpenAI.APIKey != "oa-key" {
		t.Fatalf("expected OpenAI key from env, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Model != config.Default().OpenAI.Model {
		t.Fatalf("unexpected model: %q", cfg.OpenAI.Model)
	}
	if cfg.Scheduler.MaxAttempts != 3 {
		t.Fatalf("unexpected max attempts: %d", cfg.Scheduler.MaxAttempts)
	}
	if cfg.Prompts.LengthMode != "range" {
		t.Fatalf("unexpected length mode: %q", cfg.Prompts.LengthMode)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "tweetloom.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.PromptsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadParsesTOMLOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	content := `
[youtube]
api_key = "file-yt"

[openai]
api_key = "file-oa"
model = "gpt-4o"
temperature = 0.2

[scheduler]
items_per_run = 12
max_attempts = 5

[logging]
format = "json"
level = "debug"
`
	path := filepath.Join(tempHome, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.YouTube.APIKey != "file-yt" {
		t.Fatalf("unexpected youtube key: %q", cfg.YouTube.APIKey)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Fatalf("unexpected model: %q", cfg.OpenAI.Model)
	}
	if cfg.Scheduler.ItemsPerRun != 12 {
		t.Fatalf("unexpected items per run: %d", cfg.Scheduler.ItemsPerRun)
	}
	if cfg.Scheduler.MaxAttempts != 5 {
		t.Fatalf("unexpected max attempts: %d", cfg.Scheduler.MaxAttempts)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	// Untouched sections keep defaults.
	if cfg.Twitter.BaseURL != config.Default().Twitter.BaseURL {
		t.Fatalf("unexpected twitter base url: %q", cfg.Twitter.BaseURL)
	}
}

func TestLoadRejectsMissingYouTubeKey(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "oa-key")

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected validation error for missing youtube key")
	}
	if !strings.Contains(err.Error(), "youtube.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadLengthPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.YouTube.APIKey = "k"
	cfg.OpenAI.APIKey = "k"
	cfg.Prompts.LengthMode = "fixed"
	cfg.Prompts.MinChars = 300
	cfg.Prompts.MaxChars = 280

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when min_chars exceeds max_chars")
	}

	cfg.Prompts.MinChars = 100
	cfg.Prompts.MaxChars = 400
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max_chars exceeds 280")
	}
}

func TestValidateRejectsHeartbeatTimeoutNotAboveInterval(t *testing.T) {
	cfg := config.Default()
	cfg.YouTube.APIKey = "k"
	cfg.OpenAI.APIKey = "k"
	cfg.Scheduler.HeartbeatInterval = 30
	cfg.Scheduler.HeartbeatTimeout = 30

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected heartbeat timeout validation error")
	}
}

func TestCreateSampleWritesParseableTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
}
