package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tweetloom/internal/config"
	"tweetloom/internal/daemon"
	"tweetloom/internal/ingestion"
	"tweetloom/internal/logging"
	"tweetloom/internal/pipeline"
	"tweetloom/internal/publishing"
	"tweetloom/internal/services/youtube"
	"tweetloom/internal/store"
	"tweetloom/internal/testsupport"
)

type noopSource struct{}

func (noopSource) ResolveChannel(ctx context.Context, reference string) (youtube.Channel, string, error) {
	return youtube.Channel{ExternalID: reference, Title: "Test Channel"}, "UU" + reference, nil
}

func (noopSource) ListUploads(ctx context.Context, uploadsPlaylistID string, since time.Time, maxResults int) ([]youtube.Metadata, error) {
	return nil, nil
}

type noopTranscriber struct{}

func (noopTranscriber) Transcribe(ctx context.Context, videoID, videoURL string) (string, error) {
	return "transcript", nil
}

type noopGenerator struct{}

func (noopGenerator) GenerateTweets(ctx context.Context, promptText string, count int) ([]string, error) {
	return []string{"a tweet"}, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, text string) (string, error) {
	return "tw-1", nil
}

type noopTemplates struct{}

func (noopTemplates) Load(name string) (string, error) {
	return "Tweets about {video_title} from {channel_title}.", nil
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	apiAddr    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Secrets.Passphrase = "test-pass"

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	ingest := ingestion.New(cfg, st, noopSource{}, noopTranscriber{}, logger)
	publish := publishing.New(cfg, st, noopGenerator{}, noopPublisher{}, noopTemplates{}, logger)
	runner := pipeline.NewRunner(ingest, publish, logger)
	recovery := pipeline.NewRecovery(st, time.Minute, logger)
	scheduler := pipeline.NewScheduler(cfg, st, runner, recovery, logger)

	d, err := daemon.New(cfg, st, logger, runner, scheduler)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() { d.Stop() })

	return &cliTestEnv{
		cfg:        cfg,
		store:      st,
		daemon:     d,
		apiAddr:    d.APIAddr(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
prompts_dir = %q
api_bind = %q

[youtube]
api_key = "test"

[openai]
api_key = "test"

[secrets]
passphrase = %q
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.PromptsDir,
		cfg.Paths.APIBind,
		cfg.Secrets.Passphrase,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
