package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// VideoStats returns a count of videos grouped by status.
func (s *Store) VideoStats(ctx context.Context) (map[VideoStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM videos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("video stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[VideoStatus]int)
	for rows.Next() {
		var status VideoStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// GenerationStats returns a count of generations grouped by status.
func (s *Store) GenerationStats(ctx context.Context) (map[GenerationStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tweet_generations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("generation stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[GenerationStatus]int)
	for rows.Next() {
		var status GenerationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// TweetStats returns a count of tweets grouped by status.
func (s *Store) TweetStats(ctx context.Context) (map[TweetStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tweets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("tweet stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[TweetStatus]int)
	for rows.Next() {
		var status TweetStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates pipeline state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	health := HealthSummary{}

	videoStats, err := s.VideoStats(ctx)
	if err != nil {
		return health, err
	}
	for status, count := range videoStats {
		health.Videos += count
		switch status {
		case VideoDiscovered:
			health.Discovered += count
		case VideoTranscribing:
			health.Transcribing += count
		case VideoTranscribed:
			health.Transcribed += count
		case VideoFailed:
			health.VideosFailed += count
		}
	}

	generationStats, err := s.GenerationStats(ctx)
	if err != nil {
		return health, err
	}
	for status, count := range generationStats {
		health.Generations += count
		switch status {
		case GenerationPending:
			health.Pending += count
		case GenerationGenerated:
			health.Generated += count
		case GenerationFailed:
			health.GensFailed += count
		}
	}

	tweetStats, err := s.TweetStats(ctx)
	if err != nil {
		return health, err
	}
	for status, count := range tweetStats {
		health.Tweets += count
		switch status {
		case TweetDraft:
			health.Drafts += count
		case TweetPublished:
			health.Published += count
		case TweetFailed:
			health.TweetsFailed += count
		}
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(active), 0) FROM channels`)
	if err := row.Scan(&health.TrackedChans, &health.ActiveChans); err != nil {
		return health, fmt.Errorf("count channels: %w", err)
	}

	return health, nil
}

// CheckHealth returns diagnostic information about the database file.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: "current",
	}

	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = integrity == "ok"

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM videos").Scan(&health.TotalVideos); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count videos: %w", err)
	}

	return health, nil
}
