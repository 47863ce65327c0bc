package publishing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tweetloom/internal/config"
	"tweetloom/internal/logging"
	"tweetloom/internal/services"
	"tweetloom/internal/store"
	"tweetloom/internal/testsupport"
)

type fakeGenerator struct {
	tweets  []string
	err     error
	calls   int
	prompts []string
}

func (f *fakeGenerator) GenerateTweets(ctx context.Context, promptText string, count int) ([]string, error) {
	f.calls++
	f.prompts = append(f.prompts, promptText)
	if f.err != nil {
		return nil, f.err
	}
	if f.tweets != nil {
		return f.tweets, nil
	}
	return []string{"generated tweet"}, nil
}

type fakePublisher struct {
	err   error
	calls int
	texts []string
}

func (f *fakePublisher) Publish(ctx context.Context, text string) (string, error) {
	f.calls++
	f.texts = append(f.texts, text)
	if f.err != nil {
		return "", f.err
	}
	return "tw-1", nil
}

type fakeTemplates struct {
	template string
	err      error
}

func (f *fakeTemplates) Load(name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.template != "" {
		return f.template, nil
	}
	return "Write tweets about {video_title} from {channel_title}.", nil
}

func newPipeline(t *testing.T, opts ...testsupport.ConfigOption) (*Pipeline, *store.Store, *config.Config, *fakeGenerator, *fakePublisher, *fakeTemplates) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	generator := &fakeGenerator{}
	publisher := &fakePublisher{}
	templates := &fakeTemplates{}
	pipeline := New(cfg, st, generator, publisher, templates, logging.NewNop())
	return pipeline, st, cfg, generator, publisher, templates
}

func TestPipelineRunGeneratesAndPublishes(t *testing.T) {
	pipeline, st, _, generator, publisher, _ := newPipeline(t)
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo Channel")
	video := testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Great Video", "the transcript body")

	summary, err := pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 1 || summary.Succeeded != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if generator.calls != 1 {
		t.Fatalf("expected one generation call, got %d", generator.calls)
	}
	composed := generator.prompts[0]
	for _, want := range []string{
		"=== OBJECTIVE ===",
		"=== TRANSCRIPT ===",
		"the transcript body",
		"Great Video",
		"Demo Channel",
	} {
		if !strings.Contains(composed, want) {
			t.Fatalf("composed prompt missing %q:\n%s", want, composed)
		}
	}

	generation, err := st.LatestGeneration(ctx, video.ID)
	if err != nil || generation == nil {
		t.Fatalf("generation not stored: %v", err)
	}
	if generation.Status != store.GenerationGenerated {
		t.Fatalf("expected generated status, got %s", generation.Status)
	}
	if generation.Prompt != composed {
		t.Fatal("stored prompt does not match the composed prompt")
	}

	tweets, err := st.TweetsByGeneration(ctx, generation.ID)
	if err != nil || len(tweets) != 1 {
		t.Fatalf("expected one tweet, got %d (%v)", len(tweets), err)
	}
	if tweets[0].Status != store.TweetPublished || tweets[0].ExternalID != "tw-1" {
		t.Fatalf("unexpected tweet %+v", tweets[0])
	}
	if publisher.texts[0] != "generated tweet" {
		t.Fatalf("unexpected published text %q", publisher.texts[0])
	}

	// The published video drops out of later runs.
	summary, err = pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("published video should be excluded, got %+v", summary)
	}
}

func TestPipelineRunNormalizesTweetText(t *testing.T) {
	pipeline, st, _, generator, publisher, _ := newPipeline(t)
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	generator.tweets = []string{"  grab a cafe\u0301 break  "}
	if _, err := pipeline.Run(ctx, "UCdemo", 0); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if publisher.texts[0] != "grab a café break" {
		t.Fatalf("expected normalized composed form, got %q", publisher.texts[0])
	}
}

func TestPipelineRunRejectsOverlongTweet(t *testing.T) {
	pipeline, st, _, generator, publisher, _ := newPipeline(t)
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	video := testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	generator.tweets = []string{strings.Repeat("x", 281)}
	summary, err := pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if publisher.calls != 0 {
		t.Fatal("nothing should be published")
	}

	generation, _ := st.LatestGeneration(ctx, video.ID)
	if generation.Status != store.GenerationFailed || generation.AttemptCount != 1 {
		t.Fatalf("expected one failed attempt, got status=%s attempts=%d", generation.Status, generation.AttemptCount)
	}
	if !strings.Contains(generation.ErrorMessage, "280") {
		t.Fatalf("error message should mention the limit, got %q", generation.ErrorMessage)
	}
}

func TestPipelineRunTemplateFailureIsRetryable(t *testing.T) {
	pipeline, st, _, generator, _, templates := newPipeline(t)
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	video := testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	templates.err = services.Wrap(services.ErrNotFound, "compose", "load", "no such template", nil)
	summary, err := pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if generator.calls != 0 {
		t.Fatal("generator must not run without a template")
	}

	generation, _ := st.LatestGeneration(ctx, video.ID)
	if generation.Status != store.GenerationFailed || generation.AttemptCount != 1 {
		t.Fatalf("expected failed generation, got status=%s attempts=%d", generation.Status, generation.AttemptCount)
	}

	// Fixing the template lets the next run reclaim and succeed.
	templates.err = nil
	summary, err = pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected retry success, got %+v", summary)
	}
	generation, _ = st.LatestGeneration(ctx, video.ID)
	if generation.Status != store.GenerationGenerated {
		t.Fatalf("expected generated after retry, got %s", generation.Status)
	}
}

func TestPipelineRunMissingPlaceholderFailsGeneration(t *testing.T) {
	pipeline, st, _, generator, _, templates := newPipeline(t)
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	video := testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	templates.template = "Mention {nonexistent_value} here."
	summary, err := pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if generator.calls != 0 {
		t.Fatal("generator must not run with an unrenderable template")
	}
	generation, _ := st.LatestGeneration(ctx, video.ID)
	if !strings.Contains(generation.ErrorMessage, "nonexistent_value") {
		t.Fatalf("error should name the missing placeholder, got %q", generation.ErrorMessage)
	}
}

func TestPipelineRunPublishFailureReusesDrafts(t *testing.T) {
	pipeline, st, _, generator, publisher, _ := newPipeline(t)
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	video := testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	publisher.err = services.Wrap(services.ErrPublish, "publish", "create", "http 503", nil)
	summary, err := pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	generation, _ := st.LatestGeneration(ctx, video.ID)
	if generation.Status != store.GenerationFailed || generation.AttemptCount != 1 {
		t.Fatalf("publish failure should consume a generation attempt, got status=%s attempts=%d", generation.Status, generation.AttemptCount)
	}

	// The retry run re-arms the existing draft without another model call.
	publisher.err = nil
	summary, err = pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected publish success on retry, got %+v", summary)
	}
	if generator.calls != 1 {
		t.Fatalf("drafts should be reused, generator ran %d times", generator.calls)
	}
	if publisher.calls != 2 {
		t.Fatalf("expected 2 publish attempts, got %d", publisher.calls)
	}

	tweets, _ := st.TweetsByGeneration(ctx, generation.ID)
	if len(tweets) != 1 || tweets[0].Status != store.TweetPublished {
		t.Fatalf("expected the original draft published, got %+v", tweets)
	}
}

func TestPipelineRunPublishRetryBudget(t *testing.T) {
	pipeline, st, _, _, publisher, _ := newPipeline(t, testsupport.WithMaxAttempts(2))
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	publisher.err = services.Wrap(services.ErrPublish, "publish", "create", "always broken", nil)
	for run := 0; run < 4; run++ {
		if _, err := pipeline.Run(ctx, "UCdemo", 0); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}
	if publisher.calls != 2 {
		t.Fatalf("expected attempts capped at 2, got %d", publisher.calls)
	}
}

func TestPipelineRunDraftlessGenerationConsumesBudget(t *testing.T) {
	pipeline, st, _, generator, publisher, _ := newPipeline(t)
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	video := testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	// A worker that died after completing the generation but before storing
	// any draft leaves a generated batch with nothing to post.
	generation, err := st.InsertPendingGeneration(ctx, video.ID, "model")
	if err != nil {
		t.Fatalf("seed generation: %v", err)
	}
	if _, err := st.MarkGenerated(ctx, generation.ID, "prompt"); err != nil {
		t.Fatalf("mark generated: %v", err)
	}

	summary, err := pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if publisher.calls != 0 {
		t.Fatal("nothing should be published without a draft")
	}

	generation, _ = st.GenerationByID(ctx, generation.ID)
	if generation.Status != store.GenerationFailed || generation.AttemptCount != 1 {
		t.Fatalf("draftless batch should fail and consume an attempt, got status=%s attempts=%d", generation.Status, generation.AttemptCount)
	}

	// The next run reclaims the slot and regenerates the missing drafts.
	summary, err = pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("repair run: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected regenerated batch to publish, got %+v", summary)
	}
	if generator.calls != 1 {
		t.Fatalf("expected one regeneration call, got %d", generator.calls)
	}
}

func TestPipelineRunDraftlessGenerationRespectsBudget(t *testing.T) {
	pipeline, st, _, generator, _, _ := newPipeline(t, testsupport.WithMaxAttempts(1))
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	video := testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	generation, err := st.InsertPendingGeneration(ctx, video.ID, "model")
	if err != nil {
		t.Fatalf("seed generation: %v", err)
	}
	if _, err := st.MarkGenerated(ctx, generation.ID, "prompt"); err != nil {
		t.Fatalf("mark generated: %v", err)
	}

	for run := 0; run < 3; run++ {
		if _, err := pipeline.Run(ctx, "UCdemo", 0); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}

	generation, _ = st.GenerationByID(ctx, generation.ID)
	if generation.Status != store.GenerationFailed || generation.AttemptCount != 1 {
		t.Fatalf("exhausted batch must stay failed, got status=%s attempts=%d", generation.Status, generation.AttemptCount)
	}
	if generator.calls != 0 {
		t.Fatal("an exhausted batch must not be regenerated")
	}
}

func TestPipelineRunSkipsPendingGeneration(t *testing.T) {
	pipeline, st, _, generator, _, _ := newPipeline(t)
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	video := testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	// Another worker holds the pending claim.
	if _, err := st.InsertPendingGeneration(ctx, video.ID, "other-model"); err != nil {
		t.Fatalf("seed pending generation: %v", err)
	}

	summary, err := pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("pending video must be skipped, got %+v", summary)
	}
	if generator.calls != 0 {
		t.Fatal("generator must not run for a claimed video")
	}
}

func TestPipelineRunResumesGeneratedBatch(t *testing.T) {
	pipeline, st, _, generator, publisher, _ := newPipeline(t)
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	video := testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	generation, err := st.InsertPendingGeneration(ctx, video.ID, "model")
	if err != nil {
		t.Fatalf("seed generation: %v", err)
	}
	if _, err := st.MarkGenerated(ctx, generation.ID, "prompt"); err != nil {
		t.Fatalf("mark generated: %v", err)
	}
	if _, err := st.NewDraft(ctx, generation.ID, video.ID, 1, "existing draft"); err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	summary, err := pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected resumed publish, got %+v", summary)
	}
	if generator.calls != 0 {
		t.Fatal("generator must not rerun for a generated batch")
	}
	if publisher.texts[0] != "existing draft" {
		t.Fatalf("unexpected published text %q", publisher.texts[0])
	}
}

func TestPipelineRunMultipleTweetsPublishesOne(t *testing.T) {
	pipeline, st, cfg, generator, publisher, _ := newPipeline(t)
	cfg.Prompts.TweetCount = 3
	ctx := context.Background()

	channel := testsupport.SeedChannel(t, st, "UCdemo", "Demo")
	video := testsupport.SeedTranscribedVideo(t, st, channel.ID, "vid1", "Video", "transcript")

	generator.tweets = []string{"one", "two", "three"}
	summary, err := pipeline.Run(ctx, "UCdemo", 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	generation, _ := st.LatestGeneration(ctx, video.ID)
	tweets, _ := st.TweetsByGeneration(ctx, generation.ID)
	if len(tweets) != 3 {
		t.Fatalf("expected 3 drafts stored, got %d", len(tweets))
	}
	var published int
	for _, tweet := range tweets {
		if tweet.Status == store.TweetPublished {
			published++
		}
	}
	if published != 1 || publisher.calls != 1 {
		t.Fatalf("exactly one tweet should be published per run, got published=%d calls=%d", published, publisher.calls)
	}
}

func TestPipelineRunUnknownChannel(t *testing.T) {
	pipeline, _, _, _, _, _ := newPipeline(t)
	if _, err := pipeline.Run(context.Background(), "UCmissing", 0); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}
