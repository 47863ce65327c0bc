package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tweetloom/internal/config"
	"tweetloom/internal/logging"
	"tweetloom/internal/services"
	"tweetloom/internal/store"
)

// Scheduler drives periodic ingestion and publishing runs over every active
// channel, plus the recovery sweep. Each loop runs once at startup and then
// on its configured interval.
type Scheduler struct {
	cfg      *config.Config
	store    *store.Store
	runner   *Runner
	recovery *Recovery
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler constructs a scheduler.
func NewScheduler(cfg *config.Config, st *store.Store, runner *Runner, recovery *Recovery, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:      cfg,
		store:    st,
		runner:   runner,
		recovery: recovery,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
	}
}

// Start begins the background loops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	loops := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{
			name:     "ingestion",
			interval: time.Duration(s.cfg.Scheduler.IngestionIntervalMinutes) * time.Minute,
			run:      func(ctx context.Context) { s.runChannels(ctx, ModeIngest) },
		},
		{
			name:     "publishing",
			interval: time.Duration(s.cfg.Scheduler.PublishingIntervalMinutes) * time.Minute,
			run:      func(ctx context.Context) { s.runChannels(ctx, ModePublish) },
		},
		{
			name:     "recovery",
			interval: time.Duration(s.cfg.Scheduler.StaleTimeoutMinutes) * time.Minute,
			run:      s.runSweep,
		},
	}

	s.wg.Add(len(loops))
	for _, loop := range loops {
		go s.runLoop(runCtx, loop.name, loop.interval, loop.run)
	}
	return nil
}

// Stop terminates the loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Running reports whether the background loops are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	defer s.wg.Done()
	if interval <= 0 {
		s.logger.Warn("loop disabled by non-positive interval", logging.String("loop", name))
		return
	}

	run(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

func (s *Scheduler) runChannels(ctx context.Context, mode Mode) {
	channels, err := s.store.Channels(ctx, true)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("listing active channels failed",
				logging.String(logging.FieldMode, string(mode)),
				logging.Error(err))
		}
		return
	}

	for _, channel := range channels {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.runner.Run(ctx, channel.ExternalID, mode, 0); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			attrs := []logging.Attr{
				logging.String(logging.FieldChannelID, channel.ExternalID),
				logging.String(logging.FieldMode, string(mode)),
				logging.Error(err),
			}
			if services.IsFatal(err) {
				attrs = append(attrs, logging.Alert("pipeline_run_fatal"))
			}
			s.logger.Error("scheduled run failed", logging.Args(attrs...)...)
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	if _, _, err := s.recovery.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("recovery sweep failed", logging.Error(err))
	}
}
