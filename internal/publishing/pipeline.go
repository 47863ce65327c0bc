// Package publishing turns stored transcripts into published tweets. A run
// walks the channel's transcribed videos, claims one live generation per
// video, composes the prompt, asks the model for tweet text, and posts the
// oldest unpublished draft. The partial unique index on live generations is
// the only exclusivity mechanism: losing the insert race is a benign skip.
package publishing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"tweetloom/internal/config"
	"tweetloom/internal/logging"
	"tweetloom/internal/prompt"
	"tweetloom/internal/services"
	"tweetloom/internal/store"
)

// maxTweetChars is the platform hard limit on tweet length.
const maxTweetChars = 280

// Generator produces tweet texts from a composed prompt.
type Generator interface {
	GenerateTweets(ctx context.Context, promptText string, count int) ([]string, error)
}

// Publisher posts one tweet and returns its platform id.
type Publisher interface {
	Publish(ctx context.Context, text string) (string, error)
}

// TemplateLoader resolves a prompt template by name.
type TemplateLoader interface {
	Load(name string) (string, error)
}

// Summary reports the outcome of one publishing run.
type Summary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Pipeline runs generation and publishing for one channel at a time.
type Pipeline struct {
	cfg       *config.Config
	store     *store.Store
	generator Generator
	publisher Publisher
	templates TemplateLoader
	logger    *slog.Logger

	heartbeatInterval time.Duration
}

// New constructs a publishing pipeline.
func New(cfg *config.Config, st *store.Store, generator Generator, publisher Publisher, templates TemplateLoader, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		generator: generator,
		publisher: publisher,
		templates: templates,
		logger:    logging.NewComponentLogger(logger, "publishing"),

		heartbeatInterval: time.Duration(cfg.Scheduler.HeartbeatInterval) * time.Second,
	}
}

// Run publishes for one channel. limit caps how many videos are handled this
// run; 0 falls back to the configured items per run.
func (p *Pipeline) Run(ctx context.Context, channelRef string, limit int) (Summary, error) {
	var summary Summary
	channelRef = strings.TrimSpace(channelRef)
	if channelRef == "" {
		return summary, services.Wrap(services.ErrConfiguration, "publish", "run", "channel reference required", nil)
	}
	if limit <= 0 {
		limit = p.cfg.Scheduler.ItemsPerRun
	}

	channel, err := p.store.ChannelByExternalID(ctx, channelRef)
	if err != nil {
		return summary, services.Wrap(services.ErrStorage, "publish", "run", "load channel "+channelRef, err)
	}
	if channel == nil {
		return summary, services.Wrap(services.ErrNotFound, "publish", "run", "channel "+channelRef+" not tracked", nil)
	}

	logger := p.logger.With(logging.String(logging.FieldChannelID, channel.ExternalID))

	candidates, err := p.store.EligibleForPublishing(ctx, channel.ID, p.cfg.Scheduler.MaxAttempts, limit)
	if err != nil {
		return summary, services.Wrap(services.ErrStorage, "publish", "select", "list publishable videos", err)
	}
	for _, video := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		worked, err := p.processVideo(ctx, logger, channel, video)
		if !worked {
			if err != nil && (services.IsFatal(err) || errors.Is(err, context.Canceled)) {
				return summary, err
			}
			continue
		}
		summary.Processed++
		if err != nil {
			if services.IsFatal(err) || errors.Is(err, context.Canceled) {
				return summary, err
			}
			if !services.IsConflict(err) {
				summary.Failed++
			}
			continue
		}
		summary.Succeeded++
	}

	logger.Info("publishing run finished",
		logging.Int("processed", summary.Processed),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed))
	return summary, nil
}

// processVideo reports whether the video was actually worked on (claimed or
// resumed) alongside the outcome error.
func (p *Pipeline) processVideo(ctx context.Context, logger *slog.Logger, channel *store.Channel, video *store.Video) (bool, error) {
	videoLogger := logger.With(logging.String(logging.FieldVideoID, video.ExternalID))

	generation, err := p.claimGeneration(ctx, videoLogger, video)
	if err != nil || generation == nil {
		return false, err
	}

	if generation.Status == store.GenerationPending {
		generation, err = p.generate(ctx, videoLogger, channel, video, generation)
		if err != nil || generation == nil {
			return true, err
		}
	}

	return true, p.publish(ctx, videoLogger, generation)
}

// claimGeneration secures the live generation slot for a video. It resumes a
// generated batch, skips one that is pending elsewhere, re-arms a failed one
// inside the retry budget, or inserts a fresh pending claim.
func (p *Pipeline) claimGeneration(ctx context.Context, logger *slog.Logger, video *store.Video) (*store.TweetGeneration, error) {
	active, err := p.store.ActiveGeneration(ctx, video.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "publish", "claim", "load active generation", err)
	}
	if active != nil {
		if active.Status == store.GenerationPending {
			logger.Debug("generation in flight elsewhere, skipping")
			return nil, nil
		}
		return active, nil
	}

	latest, err := p.store.LatestGeneration(ctx, video.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "publish", "claim", "load latest generation", err)
	}
	if latest != nil && latest.Status == store.GenerationFailed {
		reclaimed, err := p.store.ReclaimFailedGeneration(ctx, latest.ID, p.cfg.Scheduler.MaxAttempts)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "publish", "claim", "reclaim failed generation", err)
		}
		if !reclaimed {
			logger.Debug("failed generation not reclaimable, skipping")
			return nil, nil
		}
		return p.store.GenerationByID(ctx, latest.ID)
	}

	generation, err := p.store.InsertPendingGeneration(ctx, video.ID, p.cfg.OpenAI.Model)
	if err != nil {
		if errors.Is(err, store.ErrActiveGenerationExists) {
			logger.Debug("lost generation claim race, skipping")
			return nil, nil
		}
		return nil, services.Wrap(services.ErrStorage, "publish", "claim", "insert generation", err)
	}
	return generation, nil
}

// generate fills a pending generation with drafts. A reclaimed generation
// that already has drafts skips the model call: its failed tweets are
// re-armed and the stored prompt is kept.
func (p *Pipeline) generate(ctx context.Context, logger *slog.Logger, channel *store.Channel, video *store.Video, generation *store.TweetGeneration) (*store.TweetGeneration, error) {
	existing, err := p.store.TweetsByGeneration(ctx, generation.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "publish", "generate", "load drafts", err)
	}
	if len(existing) > 0 {
		for _, tweet := range existing {
			if tweet.Status != store.TweetFailed {
				continue
			}
			if _, err := p.store.RetryFailedTweet(ctx, tweet.ID); err != nil {
				return nil, services.Wrap(services.ErrStorage, "publish", "generate", "re-arm failed tweet", err)
			}
		}
		if _, err := p.store.MarkGenerated(ctx, generation.ID, generation.Prompt); err != nil {
			return nil, services.Wrap(services.ErrStorage, "publish", "generate", "restore generated state", err)
		}
		logger.Info("resuming generation with existing drafts", logging.Int("drafts", len(existing)))
		return p.store.GenerationByID(ctx, generation.ID)
	}

	logger.Info("generation started", logging.Int(logging.FieldAttempt, generation.AttemptCount+1))
	composed, texts, genErr := p.composeAndGenerate(ctx, channel, video, generation)
	if genErr != nil {
		if services.IsFatal(genErr) || errors.Is(genErr, context.Canceled) {
			return nil, genErr
		}
		message := strings.TrimSpace(genErr.Error())
		if _, markErr := p.store.MarkGenerationFailed(ctx, generation.ID, message); markErr != nil {
			return nil, services.Wrap(services.ErrStorage, "publish", "generate", "record failure", markErr)
		}
		logger.Error("generation failed", logging.Error(genErr))
		return nil, genErr
	}

	ok, err := p.store.MarkGenerated(ctx, generation.ID, composed)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "publish", "generate", "record result", err)
	}
	if !ok {
		logger.Warn("generation completion lost its claim, discarding result")
		return nil, services.Wrap(services.ErrConflict, "publish", "generate", "video "+video.ExternalID, nil)
	}
	for i, text := range texts {
		if _, err := p.store.NewDraft(ctx, generation.ID, video.ID, i+1, text); err != nil {
			return nil, services.Wrap(services.ErrStorage, "publish", "generate", "store draft", err)
		}
	}
	logger.Info("generation completed", logging.Int("drafts", len(texts)))
	return p.store.GenerationByID(ctx, generation.ID)
}

func (p *Pipeline) composeAndGenerate(ctx context.Context, channel *store.Channel, video *store.Video, generation *store.TweetGeneration) (string, []string, error) {
	templateName := strings.TrimSpace(p.cfg.Prompts.Template)
	if templateName == "" {
		templateName = "default"
	}
	template, err := p.templates.Load(templateName)
	if err != nil {
		return "", nil, services.Wrap(services.ErrTemplate, "publish", "compose", "load template "+templateName, err)
	}

	composer := prompt.Composer{
		Tweets:         p.tweetCount(),
		OutputLanguage: p.cfg.Prompts.OutputLanguage,
		Length:         p.lengthPolicy(),
	}
	composed, err := composer.Compose(template, map[string]string{
		"channel_title": channel.Title,
		"video_title":   video.Title,
	}, video.Transcript)
	if err != nil {
		return "", nil, err
	}

	texts, err := p.withHeartbeat(ctx, generation.ID, func(ctx context.Context) ([]string, error) {
		return p.generator.GenerateTweets(ctx, composed, p.tweetCount())
	})
	if err != nil {
		return "", nil, err
	}

	normalized := make([]string, 0, len(texts))
	for i, text := range texts {
		text = strings.TrimSpace(norm.NFC.String(text))
		if text == "" {
			continue
		}
		if count := utf8.RuneCountInString(text); count > maxTweetChars {
			return "", nil, services.Wrap(services.ErrGeneration, "publish", "validate",
				fmt.Sprintf("tweet %d is %d characters, over the %d limit", i+1, count, maxTweetChars), nil)
		}
		normalized = append(normalized, text)
	}
	if len(normalized) == 0 {
		return "", nil, services.Wrap(services.ErrGeneration, "publish", "validate", "model produced no usable tweets", nil)
	}
	return composed, normalized, nil
}

// publish posts the oldest unpublished draft. A publish failure fails both
// the tweet and its generation, consuming one retry; the vacated slot lets a
// later run re-arm the drafts without another model call.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, generation *store.TweetGeneration) error {
	draft, err := p.store.NextDraft(ctx, generation.ID)
	if err != nil {
		return services.Wrap(services.ErrStorage, "publish", "post", "load draft", err)
	}
	if draft == nil {
		// A worker that died between completing the generation and storing
		// its drafts leaves a generated batch with nothing to post. Fail the
		// generation so the retry budget advances and a later run can re-arm
		// it and regenerate the drafts.
		if _, err := p.store.RecordPublishFailure(ctx, generation.ID, "generated batch has no draft to publish"); err != nil {
			return services.Wrap(services.ErrStorage, "publish", "post", "record generation failure", err)
		}
		logger.Warn("generated batch has no draft to publish, failing generation")
		return services.Wrap(services.ErrPublish, "publish", "post", "no draft available", nil)
	}

	externalID, pubErr := p.publisher.Publish(ctx, draft.Text)
	if pubErr != nil {
		if services.IsFatal(pubErr) || errors.Is(pubErr, context.Canceled) {
			return pubErr
		}
		message := strings.TrimSpace(pubErr.Error())
		if _, err := p.store.MarkTweetFailed(ctx, draft.ID, message); err != nil {
			return services.Wrap(services.ErrStorage, "publish", "post", "record tweet failure", err)
		}
		if _, err := p.store.RecordPublishFailure(ctx, generation.ID, message); err != nil {
			return services.Wrap(services.ErrStorage, "publish", "post", "record generation failure", err)
		}
		logger.Error("publish failed", logging.Error(pubErr))
		return pubErr
	}

	published, err := p.store.MarkTweetPublished(ctx, draft.ID, externalID)
	if err != nil {
		return services.Wrap(services.ErrStorage, "publish", "post", "record published tweet", err)
	}
	if !published {
		logger.Warn("publish record lost its guard, another tweet already published")
		return services.Wrap(services.ErrConflict, "publish", "post", "tweet already published", nil)
	}
	logger.Info("tweet published", logging.String("tweet_id", externalID))
	return nil
}

func (p *Pipeline) tweetCount() int {
	if p.cfg.Prompts.TweetCount > 0 {
		return p.cfg.Prompts.TweetCount
	}
	return 1
}

func (p *Pipeline) lengthPolicy() *prompt.LengthPolicy {
	switch strings.ToLower(strings.TrimSpace(p.cfg.Prompts.LengthMode)) {
	case "fixed":
		return &prompt.LengthPolicy{
			Mode:   "fixed",
			Target: p.cfg.Prompts.MaxChars,
			Unit:   "chars",
		}
	case "range":
		return &prompt.LengthPolicy{
			Mode: "range",
			Min:  p.cfg.Prompts.MinChars,
			Max:  p.cfg.Prompts.MaxChars,
			Unit: "chars",
		}
	default:
		return nil
	}
}

func (p *Pipeline) withHeartbeat(ctx context.Context, generationID int64, work func(context.Context) ([]string, error)) ([]string, error) {
	if p.heartbeatInterval <= 0 {
		return work(ctx)
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(p.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := p.store.GenerationHeartbeat(hbCtx, generationID); err != nil && !errors.Is(err, context.Canceled) {
					p.logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}()

	result, err := work(ctx)
	hbCancel()
	wg.Wait()
	return result, err
}
