// Package ingestion turns channel uploads into stored transcripts. A run has
// two phases: discovery inserts new uploads as discovered videos and advances
// the channel watermark, then transcription claims eligible videos one at a
// time and records the result. Claims are conditional writes, so concurrent
// runs over the same channel never process a video twice.
package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tweetloom/internal/config"
	"tweetloom/internal/logging"
	"tweetloom/internal/services"
	"tweetloom/internal/services/youtube"
	"tweetloom/internal/store"
)

// Source lists channel uploads.
type Source interface {
	ResolveChannel(ctx context.Context, reference string) (youtube.Channel, string, error)
	ListUploads(ctx context.Context, uploadsPlaylistID string, since time.Time, maxResults int) ([]youtube.Metadata, error)
}

// Transcriber produces transcript text for a video.
type Transcriber interface {
	Transcribe(ctx context.Context, videoID, videoURL string) (string, error)
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	Discovered int `json:"discovered"`
	Processed  int `json:"processed"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// Pipeline runs discovery and transcription for one channel at a time.
type Pipeline struct {
	cfg         *config.Config
	store       *store.Store
	source      Source
	transcriber Transcriber
	logger      *slog.Logger

	heartbeatInterval time.Duration
}

// New constructs an ingestion pipeline.
func New(cfg *config.Config, st *store.Store, source Source, transcriber Transcriber, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:         cfg,
		store:       st,
		source:      source,
		transcriber: transcriber,
		logger:      logging.NewComponentLogger(logger, "ingestion"),

		heartbeatInterval: time.Duration(cfg.Scheduler.HeartbeatInterval) * time.Second,
	}
}

// Run ingests one channel. The reference may be a stored channel external id
// or an @handle for a channel not yet tracked. limit caps how many videos are
// transcribed this run; 0 falls back to the configured items per run.
func (p *Pipeline) Run(ctx context.Context, channelRef string, limit int) (Summary, error) {
	var summary Summary
	channelRef = strings.TrimSpace(channelRef)
	if channelRef == "" {
		return summary, services.Wrap(services.ErrConfiguration, "ingest", "run", "channel reference required", nil)
	}
	if limit <= 0 {
		limit = p.cfg.Scheduler.ItemsPerRun
	}

	channel, err := p.ensureChannel(ctx, channelRef, &summary)
	if err != nil {
		return summary, err
	}

	logger := p.logger.With(logging.String(logging.FieldChannelID, channel.ExternalID))

	candidates, err := p.store.EligibleForTranscription(ctx, channel.ID, p.cfg.Scheduler.MaxAttempts, limit)
	if err != nil {
		return summary, services.Wrap(services.ErrStorage, "ingest", "select", "list eligible videos", err)
	}
	for _, video := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		claimed, err := p.store.ClaimTranscribing(ctx, video.ID, p.cfg.Scheduler.MaxAttempts)
		if err != nil {
			return summary, services.Wrap(services.ErrStorage, "ingest", "claim", "video "+video.ExternalID, err)
		}
		if !claimed {
			logger.Debug("video claimed elsewhere, skipping",
				logging.String(logging.FieldVideoID, video.ExternalID))
			continue
		}

		summary.Processed++
		if err := p.transcribeOne(ctx, logger, video); err != nil {
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

	logger.Info("ingestion run finished",
		logging.Int("discovered", summary.Discovered),
		logging.Int("processed", summary.Processed),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed))
	return summary, nil
}

// ensureChannel loads the tracked channel and runs discovery against the
// source. A listing failure on an already tracked channel only skips
// discovery: transcription can still drain the backlog.
func (p *Pipeline) ensureChannel(ctx context.Context, channelRef string, summary *Summary) (*store.Channel, error) {
	channel, err := p.store.ChannelByExternalID(ctx, channelRef)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "ingest", "discover", "load channel "+channelRef, err)
	}

	resolved, uploads, resolveErr := p.source.ResolveChannel(ctx, channelRef)
	if resolveErr != nil {
		if channel == nil {
			return nil, resolveErr
		}
		p.logger.Warn("channel resolve failed, skipping discovery",
			logging.String(logging.FieldChannelID, channel.ExternalID),
			logging.Error(resolveErr))
		return channel, nil
	}

	channel, err = p.store.AddChannel(ctx, resolved.ExternalID, resolved.Title)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "ingest", "discover", "track channel "+resolved.ExternalID, err)
	}

	since := p.discoveryWindow(channel)
	videos, listErr := p.source.ListUploads(ctx, uploads, since, 0)
	if listErr != nil {
		p.logger.Warn("upload listing failed, skipping discovery",
			logging.String(logging.FieldChannelID, channel.ExternalID),
			logging.Error(listErr))
		return channel, nil
	}

	var watermark time.Time
	for _, video := range videos {
		published := video.PublishedAt
		var publishedPtr *time.Time
		if !published.IsZero() {
			publishedPtr = &published
		}
		inserted, err := p.store.InsertDiscovered(ctx, channel.ID, video.VideoID, video.Title, video.URL, publishedPtr)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "ingest", "discover", "insert video "+video.VideoID, err)
		}
		if inserted {
			summary.Discovered++
		}
		if published.After(watermark) {
			watermark = published
		}
	}
	if !watermark.IsZero() {
		if err := p.store.AdvanceWatermark(ctx, channel.ID, watermark); err != nil {
			return nil, services.Wrap(services.ErrStorage, "ingest", "discover", "advance watermark", err)
		}
	}

	if summary.Discovered > 0 {
		p.logger.Info("discovered new uploads",
			logging.String(logging.FieldChannelID, channel.ExternalID),
			logging.Int("count", summary.Discovered))
	}
	return channel, nil
}

func (p *Pipeline) discoveryWindow(channel *store.Channel) time.Time {
	if channel.Watermark != nil {
		return *channel.Watermark
	}
	lookback := time.Duration(p.cfg.Scheduler.InitialLookbackDays) * 24 * time.Hour
	if lookback <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().Add(-lookback)
}

func (p *Pipeline) transcribeOne(ctx context.Context, logger *slog.Logger, video *store.Video) error {
	videoLogger := logger.With(logging.String(logging.FieldVideoID, video.ExternalID))
	videoLogger.Info("transcription started", logging.Int(logging.FieldAttempt, video.AttemptCount+1))
	start := time.Now()

	transcript, err := p.withHeartbeat(ctx, video.ID, func(ctx context.Context) (string, error) {
		return p.transcriber.Transcribe(ctx, video.ExternalID, video.URL)
	})
	if err != nil {
		if services.IsFatal(err) || errors.Is(err, context.Canceled) {
			return err
		}
		message := strings.TrimSpace(err.Error())
		if _, markErr := p.store.MarkTranscriptionFailed(ctx, video.ID, message); markErr != nil {
			return services.Wrap(services.ErrStorage, "ingest", "transcribe", "record failure for video "+video.ExternalID, markErr)
		}
		videoLogger.Error("transcription failed", logging.Error(err))
		return err
	}

	ok, err := p.store.MarkTranscribed(ctx, video.ID, transcript)
	if err != nil {
		return services.Wrap(services.ErrStorage, "ingest", "transcribe", "record transcript for video "+video.ExternalID, err)
	}
	if !ok {
		videoLogger.Warn("transcript completion lost its claim, discarding result")
		return services.Wrap(services.ErrConflict, "ingest", "transcribe", "video "+video.ExternalID, nil)
	}
	videoLogger.Info("transcription completed",
		logging.Int("transcript_chars", len(transcript)),
		logging.Duration("duration", time.Since(start)))
	return nil
}

// withHeartbeat keeps the video claim fresh while work runs so the stale
// sweep cannot reclaim it from a live worker.
func (p *Pipeline) withHeartbeat(ctx context.Context, videoID int64, work func(context.Context) (string, error)) (string, error) {
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
				if err := p.store.VideoHeartbeat(hbCtx, videoID); err != nil && !errors.Is(err, context.Canceled) {
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
