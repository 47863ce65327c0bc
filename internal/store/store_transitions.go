package store

import (
	"context"
	"fmt"
	"time"
)

// ReclaimStaleVideos returns videos stuck in transcribing back to their prior
// retryable state when heartbeats expire. Clearing last_heartbeat makes each
// stuck item reclaimable exactly once per stall; the attempt count is left
// alone because a crashed worker never finished an attempt.
func (s *Store) ReclaimStaleVideos(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		VideoDiscovered,
		time.Now().UTC().Format(time.RFC3339Nano),
		VideoTranscribing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale videos: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStaleGenerations fails pending generations whose heartbeats expired.
// The live slot must be vacated, not re-pended, because the partial unique
// index would otherwise block a fresh claim; the failed row keeps the retry
// budget intact since the stalled attempt never completed.
func (s *Store) ReclaimStaleGenerations(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tweet_generations
         SET status = ?, error_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		GenerationFailed,
		"reclaimed from stale processing",
		time.Now().UTC().Format(time.RFC3339Nano),
		GenerationPending,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale generations: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedVideos moves failed videos back to discovered for reprocessing,
// resetting their attempt budget. Without ids, every failed video for the
// channel is retried; channelID of zero spans all channels.
func (s *Store) RetryFailedVideos(ctx context.Context, channelID int64, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if len(ids) == 0 {
		query := `UPDATE videos
            SET status = ?, error_message = NULL, attempt_count = 0, updated_at = ?
            WHERE status = ?`
		args := []any{VideoDiscovered, now, VideoFailed}
		if channelID > 0 {
			query += ` AND channel_id = ?`
			args = append(args, channelID)
		}
		res, err := s.execWithRetry(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("retry failed videos: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, VideoDiscovered, now, VideoFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE videos
        SET status = ?, error_message = NULL, attempt_count = 0, updated_at = ?
        WHERE status = ? AND id IN (` + placeholders + `)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected videos: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedGenerations resets the attempt budget of failed generations so
// the next publishing pass can reclaim them.
func (s *Store) RetryFailedGenerations(ctx context.Context, channelID int64) (int64, error) {
	query := `UPDATE tweet_generations
        SET attempt_count = 0, error_message = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{time.Now().UTC().Format(time.RFC3339Nano), GenerationFailed}
	if channelID > 0 {
		query += ` AND video_id IN (SELECT id FROM videos WHERE channel_id = ?)`
		args = append(args, channelID)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed generations: %w", err)
	}
	return res.RowsAffected()
}
