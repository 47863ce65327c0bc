// Package daemon coordinates the background scheduler, the HTTP API, and
// single-instance locking.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"tweetloom/internal/config"
	"tweetloom/internal/logging"
	"tweetloom/internal/pipeline"
	"tweetloom/internal/services"
	"tweetloom/internal/store"
)

// Daemon enforces single-instance execution and owns the background loops.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	runner    *pipeline.Runner
	scheduler *pipeline.Scheduler

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                `json:"running"`
	DBPath       string              `json:"db_path"`
	LockFilePath string              `json:"lock_file_path"`
	Health       store.HealthSummary `json:"health"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, runner *pipeline.Runner, scheduler *pipeline.Scheduler) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || runner == nil || scheduler == nil {
		return nil, errors.New("daemon requires config, store, logger, runner, and scheduler")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "tweetloomd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		runner:    runner,
		scheduler: scheduler,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, d.logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock and launches the scheduler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tweetloom daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.scheduler.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.scheduler.Stop()
			_ = d.lock.Unlock()
			cancel()
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("tweetloom daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.scheduler.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("tweetloom daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address, or empty when the API is disabled
// or not started.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// RunPipeline executes one on-demand run for a channel. It works whether or
// not the background scheduler is active; the conditional claims in the store
// keep a manual run safe next to scheduled ones.
func (d *Daemon) RunPipeline(ctx context.Context, channelRef, mode string, limit int) (pipeline.RunSummary, error) {
	parsed, err := pipeline.ParseMode(mode)
	if err != nil {
		return pipeline.RunSummary{Mode: pipeline.Mode(mode)}, err
	}

	requestID := uuid.NewString()
	runCtx := services.WithRequestID(services.WithChannelID(ctx, channelRef), requestID)

	summary, err := d.runner.Run(runCtx, channelRef, parsed, limit)
	if err != nil {
		d.logger.Error("pipeline run failed",
			logging.String(logging.FieldChannelID, channelRef),
			logging.String(logging.FieldMode, string(parsed)),
			logging.String(logging.FieldCorrelationID, requestID),
			logging.Error(err))
		return summary, err
	}
	return summary, nil
}

// Status reports runtime information and lifecycle counts.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
	}
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("health summary unavailable", logging.Error(err))
		return status
	}
	status.Health = health
	return status
}
