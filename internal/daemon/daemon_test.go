package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"tweetloom/internal/config"
	"tweetloom/internal/ingestion"
	"tweetloom/internal/logging"
	"tweetloom/internal/pipeline"
	"tweetloom/internal/publishing"
	"tweetloom/internal/services/youtube"
	"tweetloom/internal/store"
	"tweetloom/internal/testsupport"
)

type stubSource struct{}

func (stubSource) ResolveChannel(ctx context.Context, reference string) (youtube.Channel, string, error) {
	return youtube.Channel{ExternalID: reference, Title: "Stub"}, "UU" + reference, nil
}

func (stubSource) ListUploads(ctx context.Context, uploadsPlaylistID string, since time.Time, maxResults int) ([]youtube.Metadata, error) {
	return []youtube.Metadata{{
		VideoID:     "vid1",
		Title:       "Video",
		URL:         youtube.WatchURL("vid1"),
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	}}, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, videoID, videoURL string) (string, error) {
	return "transcript", nil
}

type stubGenerator struct{}

func (stubGenerator) GenerateTweets(ctx context.Context, promptText string, count int) ([]string, error) {
	return []string{"a tweet"}, nil
}

type stubPublisher struct{}

func (stubPublisher) Publish(ctx context.Context, text string) (string, error) {
	return "tw-1", nil
}

type stubTemplates struct{}

func (stubTemplates) Load(name string) (string, error) {
	return "Tweets about {video_title} for {channel_title}.", nil
}

func newDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	ingest := ingestion.New(cfg, st, stubSource{}, stubTranscriber{}, logging.NewNop())
	publish := publishing.New(cfg, st, stubGenerator{}, stubPublisher{}, stubTemplates{}, logging.NewNop())
	runner := pipeline.NewRunner(ingest, publish, logging.NewNop())
	recovery := pipeline.NewRecovery(st, time.Minute, logging.NewNop())
	scheduler := pipeline.NewScheduler(cfg, st, runner, recovery, logging.NewNop())

	d, err := New(cfg, st, logging.NewNop(), runner, scheduler)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return d, st, cfg
}

func TestDaemonStartStop(t *testing.T) {
	d, _, _ := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !d.Running() {
		t.Fatal("daemon should report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second Start must fail")
	}
	d.Stop()
	if d.Running() {
		t.Fatal("daemon should report stopped")
	}
	// The lock is free again after Stop.
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
}

func TestDaemonRunPipeline(t *testing.T) {
	d, st, _ := newDaemon(t)
	ctx := context.Background()

	summary, err := d.RunPipeline(ctx, "UCdemo", "full", 0)
	if err != nil {
		t.Fatalf("RunPipeline returned error: %v", err)
	}
	if summary.Succeeded != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	channel, _ := st.ChannelByExternalID(ctx, "UCdemo")
	if channel == nil {
		t.Fatal("channel should be tracked after the run")
	}
	video, _ := st.VideoByExternalID(ctx, channel.ID, "vid1")
	if video == nil || video.Status != store.VideoTranscribed {
		t.Fatalf("unexpected video state %+v", video)
	}
}

func TestDaemonRunPipelineRejectsUnknownMode(t *testing.T) {
	d, _, _ := newDaemon(t)
	if _, err := d.RunPipeline(context.Background(), "UCdemo", "bogus", 0); err == nil {
		t.Fatal("expected mode validation error")
	}
}

func apiURL(t *testing.T, d *Daemon, path string) string {
	t.Helper()
	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("api address unavailable")
	}
	return "http://" + addr + path
}

func TestAPIServerEndpoints(t *testing.T) {
	d, st, _ := newDaemon(t)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	// Status.
	resp, err := http.Get(apiURL(t, d, "/api/status"))
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	resp.Body.Close()
	if !status.Running {
		t.Fatal("status should report running")
	}

	// Add a channel.
	body, _ := json.Marshal(map[string]string{"channel_id": "UCapi", "title": "Via API"})
	resp, err = http.Post(apiURL(t, d, "/api/channels"), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("add channel request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Trigger a run.
	body, _ = json.Marshal(pipelineRunRequest{ChannelID: "UCapi", Mode: "full"})
	resp, err = http.Post(apiURL(t, d, "/api/pipeline/run"), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("run request: %v", err)
	}
	var summary pipeline.RunSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || summary.Succeeded != 2 {
		t.Fatalf("unexpected run response %d %+v", resp.StatusCode, summary)
	}

	// List videos for the channel.
	resp, err = http.Get(apiURL(t, d, "/api/videos?channel=UCapi&status=transcribed"))
	if err != nil {
		t.Fatalf("videos request: %v", err)
	}
	var videos []videoView
	if err := json.NewDecoder(resp.Body).Decode(&videos); err != nil {
		t.Fatalf("decode videos: %v", err)
	}
	resp.Body.Close()
	if len(videos) != 1 || videos[0].VideoID != "vid1" {
		t.Fatalf("unexpected videos %+v", videos)
	}
	if videos[0].TranscribedAt == nil {
		t.Fatal("transcribed video should carry its transcription time")
	}

	// Deactivate the channel.
	body, _ = json.Marshal(map[string]bool{"active": false})
	resp, err = http.Post(apiURL(t, d, "/api/channels/UCapi"), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("deactivate request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	channel, _ := st.ChannelByExternalID(ctx, "UCapi")
	if channel.Active {
		t.Fatal("channel should be inactive")
	}

	// Unknown channel is a 404.
	resp, err = http.Get(apiURL(t, d, "/api/videos?channel=UCmissing"))
	if err != nil {
		t.Fatalf("missing channel request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAPIServerAuth(t *testing.T) {
	d, _, _ := newDaemon(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "sekrit"
	})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	url := apiURL(t, d, "/api/status")
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("unauthenticated request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	for name, header := range map[string]string{
		"wrong token": "Bearer nope",
		"bad scheme":  "Basic sekrit",
	} {
		req, _ := http.NewRequest(http.MethodGet, url, nil)
		req.Header.Set("Authorization", header)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s request: %v", name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authenticated request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	build := func() *Daemon {
		st := testsupport.MustOpenStore(t, cfg)
		ingest := ingestion.New(cfg, st, stubSource{}, stubTranscriber{}, logging.NewNop())
		publish := publishing.New(cfg, st, stubGenerator{}, stubPublisher{}, stubTemplates{}, logging.NewNop())
		runner := pipeline.NewRunner(ingest, publish, logging.NewNop())
		recovery := pipeline.NewRecovery(st, time.Minute, logging.NewNop())
		scheduler := pipeline.NewScheduler(cfg, st, runner, recovery, logging.NewNop())
		d, err := New(cfg, st, logging.NewNop(), runner, scheduler)
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		t.Cleanup(func() { d.Stop() })
		return d
	}

	first := build()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second := build()
	err := second.Start(context.Background())
	if err == nil {
		t.Fatal("second instance must not start while the first holds the lock")
	}
	if fmt.Sprint(err) == "" {
		t.Fatal("expected a descriptive error")
	}
}
