package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrActiveGenerationExists indicates another worker already holds the live
// generation slot for a video.
var ErrActiveGenerationExists = errors.New("active generation exists")

// GenerationByID fetches a generation by row identifier.
func (s *Store) GenerationByID(ctx context.Context, id int64) (*TweetGeneration, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+generationColumns+` FROM tweet_generations WHERE id = ?`, id)
	generation, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return generation, nil
}

// ActiveGeneration returns the pending or generated generation for a video,
// or nil when no live generation exists.
func (s *Store) ActiveGeneration(ctx context.Context, videoID int64) (*TweetGeneration, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+generationColumns+` FROM tweet_generations
         WHERE video_id = ? AND status IN (?, ?)
         ORDER BY id DESC LIMIT 1`,
		videoID,
		GenerationPending,
		GenerationGenerated,
	)
	generation, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active generation: %w", err)
	}
	return generation, nil
}

// LatestGeneration returns the most recent generation for a video regardless
// of state.
func (s *Store) LatestGeneration(ctx context.Context, videoID int64) (*TweetGeneration, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+generationColumns+` FROM tweet_generations
         WHERE video_id = ? ORDER BY id DESC LIMIT 1`,
		videoID,
	)
	generation, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest generation: %w", err)
	}
	return generation, nil
}

// InsertPendingGeneration claims the live generation slot for a video. The
// partial unique index on live generations makes the insert itself the claim;
// losing the race surfaces as ErrActiveGenerationExists.
func (s *Store) InsertPendingGeneration(ctx context.Context, videoID int64, model string) (*TweetGeneration, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO tweet_generations (video_id, status, model, last_heartbeat, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		videoID,
		GenerationPending,
		nullableString(model),
		timestamp,
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrActiveGenerationExists
		}
		return nil, fmt.Errorf("insert generation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GenerationByID(ctx, id)
}

// ReclaimFailedGeneration moves a failed generation back to pending when
// attempts remain. Returns false when another worker got there first or the
// retry budget is spent.
func (s *Store) ReclaimFailedGeneration(ctx context.Context, id int64, maxAttempts int) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tweet_generations
         SET status = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ? AND attempt_count < ?`,
		GenerationPending,
		now,
		now,
		id,
		GenerationFailed,
		maxAttempts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("reclaim generation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkGenerated records the composed prompt and completes the generation
// stage. The status guard makes a stale worker's late finish a no-op.
func (s *Store) MarkGenerated(ctx context.Context, id int64, prompt string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tweet_generations
         SET status = ?, prompt = ?, error_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		GenerationGenerated,
		nullableString(prompt),
		now,
		id,
		GenerationPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark generated: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkGenerationFailed records a failed attempt, incrementing the attempt
// count so the retry budget is consumed exactly once per real attempt.
func (s *Store) MarkGenerationFailed(ctx context.Context, id int64, message string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tweet_generations
         SET status = ?, error_message = ?, attempt_count = attempt_count + 1,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		GenerationFailed,
		nullableString(message),
		now,
		id,
		GenerationPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark generation failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RecordPublishFailure moves a generated generation to failed after a publish
// attempt went wrong, consuming one unit of the retry budget. The failed state
// vacates the live slot so a later run can reclaim and retry.
func (s *Store) RecordPublishFailure(ctx context.Context, id int64, message string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tweet_generations
         SET status = ?, error_message = ?, attempt_count = attempt_count + 1,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		GenerationFailed,
		nullableString(message),
		now,
		id,
		GenerationGenerated,
	)
	if err != nil {
		return false, fmt.Errorf("record publish failure: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// GenerationHeartbeat refreshes the claim heartbeat for an in-flight generation.
func (s *Store) GenerationHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tweet_generations SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now,
		now,
		id,
		GenerationPending,
	); err != nil {
		return fmt.Errorf("generation heartbeat: %w", err)
	}
	return nil
}

// GenerationOverview pairs a generation with identifying video fields for
// reporting surfaces.
type GenerationOverview struct {
	TweetGeneration
	VideoExternalID string
	VideoTitle      string
}

// ListGenerations returns a channel's generations newest first, optionally
// filtered by status.
func (s *Store) ListGenerations(ctx context.Context, channelID int64, statuses ...GenerationStatus) ([]*GenerationOverview, error) {
	query := `SELECT g.id, g.video_id, g.status, g.prompt, g.model, g.error_message,
	                 g.attempt_count, g.last_heartbeat, g.created_at, g.updated_at,
	                 v.external_id, v.title
	          FROM tweet_generations g
	          JOIN videos v ON v.id = g.video_id
	          WHERE v.channel_id = ?`
	args := []any{channelID}
	if len(statuses) > 0 {
		query += ` AND g.status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY g.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var overviews []*GenerationOverview
	for rows.Next() {
		var (
			overview     GenerationOverview
			statusStr    string
			prompt       sql.NullString
			model        sql.NullString
			errorMessage sql.NullString
			attemptCount sql.NullInt64
			heartbeatRaw sql.NullString
			createdRaw   sql.NullString
			updatedRaw   sql.NullString
			videoTitle   sql.NullString
		)
		if err := rows.Scan(
			&overview.ID,
			&overview.VideoID,
			&statusStr,
			&prompt,
			&model,
			&errorMessage,
			&attemptCount,
			&heartbeatRaw,
			&createdRaw,
			&updatedRaw,
			&overview.VideoExternalID,
			&videoTitle,
		); err != nil {
			return nil, fmt.Errorf("scan generation overview: %w", err)
		}
		overview.Status = GenerationStatus(statusStr)
		overview.Prompt = prompt.String
		overview.Model = model.String
		overview.ErrorMessage = errorMessage.String
		overview.AttemptCount = int(attemptCount.Int64)
		overview.VideoTitle = videoTitle.String
		if heartbeatRaw.Valid {
			if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
				overview.LastHeartbeat = &heartbeat
			}
		}
		if created, err := parseTimeString(createdRaw.String); err == nil {
			overview.CreatedAt = created
		}
		if updated, err := parseTimeString(updatedRaw.String); err == nil {
			overview.UpdatedAt = updated
		}
		overviews = append(overviews, &overview)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return overviews, nil
}

// EligibleForPublishing returns transcribed videos that still need a tweet
// published: no published tweet yet, no generation currently in flight, and
// any failed generation still inside the retry budget.
func (s *Store) EligibleForPublishing(ctx context.Context, channelID int64, maxAttempts, limit int) ([]*Video, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos v
         WHERE v.channel_id = ? AND v.status = ?
           AND NOT EXISTS (
               SELECT 1 FROM tweets t
               JOIN tweet_generations g ON t.tweet_generation_id = g.id
               WHERE g.video_id = v.id AND t.status = ?
           )
           AND NOT EXISTS (
               SELECT 1 FROM tweet_generations g
               WHERE g.video_id = v.id AND g.status = ? AND g.attempt_count >= ?
           )
         ORDER BY v.discovered_at, v.id
         LIMIT ?`,
		channelID,
		VideoTranscribed,
		TweetPublished,
		GenerationFailed,
		maxAttempts,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query publishable videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan publishable video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publishable videos: %w", err)
	}
	return videos, nil
}
