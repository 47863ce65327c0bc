package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertDiscovered records a newly discovered video in the discovered state.
// Returns false when the video is already known; rediscovery never resets an
// item that has progressed.
func (s *Store) InsertDiscovered(ctx context.Context, channelID int64, externalID, title, url string, sourcePublishedAt *time.Time) (bool, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO videos (
            channel_id, external_id, title, url, status,
            source_published_at, discovered_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(channel_id, external_id) DO NOTHING`,
		channelID,
		externalID,
		nullableString(title),
		nullableString(url),
		VideoDiscovered,
		nullableTime(sourcePublishedAt),
		timestamp,
		timestamp,
		timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// VideoByID fetches a video by row identifier.
func (s *Store) VideoByID(ctx context.Context, id int64) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// VideoByExternalID fetches a video by channel and upstream identifier.
func (s *Store) VideoByExternalID(ctx context.Context, channelID int64, externalID string) (*Video, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos WHERE channel_id = ? AND external_id = ?`,
		channelID,
		externalID,
	)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video by external id: %w", err)
	}
	return video, nil
}

// ListVideos returns a channel's videos filtered by the supplied statuses.
// With no statuses, every video for the channel is returned.
func (s *Store) ListVideos(ctx context.Context, channelID int64, statuses ...VideoStatus) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE channel_id = ?`
	args := []any{channelID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY discovered_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

// EligibleForTranscription returns videos a transcription pass may claim:
// freshly discovered ones plus failures that still have attempts left.
func (s *Store) EligibleForTranscription(ctx context.Context, channelID int64, maxAttempts, limit int) ([]*Video, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos
         WHERE channel_id = ? AND (status = ? OR (status = ? AND attempt_count < ?))
         ORDER BY discovered_at, id
         LIMIT ?`,
		channelID,
		VideoDiscovered,
		VideoFailed,
		maxAttempts,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query eligible videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan eligible video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible videos: %w", err)
	}
	return videos, nil
}

// ClaimTranscribing attempts to move a video into the transcribing state.
// The conditional update is the only exclusivity mechanism: a return of
// false means another worker holds the video or it is no longer claimable.
func (s *Store) ClaimTranscribing(ctx context.Context, id int64, maxAttempts int) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET status = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND (status = ? OR (status = ? AND attempt_count < ?))`,
		VideoTranscribing,
		now,
		now,
		id,
		VideoDiscovered,
		VideoFailed,
		maxAttempts,
	)
	if err != nil {
		return false, fmt.Errorf("claim video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkTranscribed stores the transcript and completes the transcription
// stage. The status guard makes a stale worker's late finish a no-op.
func (s *Store) MarkTranscribed(ctx context.Context, id int64, transcript string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET status = ?, transcript = ?, transcribed_at = ?, error_message = NULL,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		VideoTranscribed,
		transcript,
		now,
		now,
		id,
		VideoTranscribing,
	)
	if err != nil {
		return false, fmt.Errorf("mark transcribed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkTranscriptionFailed records a failed attempt, incrementing the attempt
// count so the retry budget is consumed exactly once per real attempt.
func (s *Store) MarkTranscriptionFailed(ctx context.Context, id int64, message string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET status = ?, error_message = ?, attempt_count = attempt_count + 1,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		VideoFailed,
		nullableString(message),
		now,
		id,
		VideoTranscribing,
	)
	if err != nil {
		return false, fmt.Errorf("mark transcription failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// VideoHeartbeat refreshes the claim heartbeat for an in-flight video.
func (s *Store) VideoHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now,
		now,
		id,
		VideoTranscribing,
	); err != nil {
		return fmt.Errorf("video heartbeat: %w", err)
	}
	return nil
}
