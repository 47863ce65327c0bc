// Package pipeline ties the ingestion and publishing phases together and
// schedules them per tracked channel.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tweetloom/internal/ingestion"
	"tweetloom/internal/logging"
	"tweetloom/internal/publishing"
	"tweetloom/internal/services"
)

// Mode selects which phases a run executes.
type Mode string

const (
	ModeIngest  Mode = "ingest"
	ModePublish Mode = "publish"
	ModeFull    Mode = "full"
)

// ParseMode validates a raw mode string. Empty means full.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeIngest:
		return ModeIngest, nil
	case ModePublish:
		return ModePublish, nil
	case ModeFull, "":
		return ModeFull, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "pipeline", "run",
			fmt.Sprintf("unknown mode %q (want ingest, publish, or full)", value), nil)
	}
}

// RunSummary aggregates per-item outcomes across the executed phases.
type RunSummary struct {
	Mode       Mode `json:"mode"`
	Discovered int  `json:"discovered"`
	Processed  int  `json:"processed"`
	Succeeded  int  `json:"succeeded"`
	Failed     int  `json:"failed"`
}

// Runner executes pipeline runs on demand.
type Runner struct {
	ingestion  *ingestion.Pipeline
	publishing *publishing.Pipeline
	logger     *slog.Logger
}

// NewRunner constructs a runner over both phases.
func NewRunner(ingest *ingestion.Pipeline, publish *publishing.Pipeline, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		ingestion:  ingest,
		publishing: publish,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run executes the selected phases for one channel. Full mode runs ingestion
// first so freshly transcribed videos can publish in the same invocation.
func (r *Runner) Run(ctx context.Context, channelRef string, mode Mode, limit int) (RunSummary, error) {
	summary := RunSummary{Mode: mode}

	if mode == ModeIngest || mode == ModeFull {
		ingested, err := r.ingestion.Run(ctx, channelRef, limit)
		summary.Discovered += ingested.Discovered
		summary.Processed += ingested.Processed
		summary.Succeeded += ingested.Succeeded
		summary.Failed += ingested.Failed
		if err != nil {
			return summary, err
		}
	}

	if mode == ModePublish || mode == ModeFull {
		published, err := r.publishing.Run(ctx, channelRef, limit)
		summary.Processed += published.Processed
		summary.Succeeded += published.Succeeded
		summary.Failed += published.Failed
		if err != nil {
			return summary, err
		}
	}

	r.logger.Info("pipeline run finished",
		logging.String(logging.FieldChannelID, channelRef),
		logging.String(logging.FieldMode, string(mode)),
		logging.Int("discovered", summary.Discovered),
		logging.Int("processed", summary.Processed),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed))
	return summary, nil
}
