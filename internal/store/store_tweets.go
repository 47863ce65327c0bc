package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewDraft inserts a draft tweet for a generation.
func (s *Store) NewDraft(ctx context.Context, generationID, videoID int64, position int, text string) (*Tweet, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO tweets (tweet_generation_id, video_id, position, text, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		generationID,
		videoID,
		position,
		text,
		TweetDraft,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.TweetByID(ctx, id)
}

// TweetByID fetches a tweet by row identifier.
func (s *Store) TweetByID(ctx context.Context, id int64) (*Tweet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tweetColumns+` FROM tweets WHERE id = ?`, id)
	tweet, err := scanTweet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tweet: %w", err)
	}
	return tweet, nil
}

// TweetsByGeneration returns a generation's tweets in composition order.
func (s *Store) TweetsByGeneration(ctx context.Context, generationID int64) ([]*Tweet, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+tweetColumns+` FROM tweets WHERE tweet_generation_id = ? ORDER BY position, id`,
		generationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tweets: %w", err)
	}
	defer rows.Close()

	var tweets []*Tweet
	for rows.Next() {
		tweet, err := scanTweet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tweet: %w", err)
		}
		tweets = append(tweets, tweet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tweets: %w", err)
	}
	return tweets, nil
}

// NextDraft returns the oldest unpublished draft for a generation, or nil.
func (s *Store) NextDraft(ctx context.Context, generationID int64) (*Tweet, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+tweetColumns+` FROM tweets
         WHERE tweet_generation_id = ? AND status = ?
         ORDER BY position, id LIMIT 1`,
		generationID,
		TweetDraft,
	)
	tweet, err := scanTweet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get next draft: %w", err)
	}
	return tweet, nil
}

// MarkTweetPublished records the upstream status id for a published draft.
// The status guard plus the published-per-generation unique index keep a
// double publish from being recorded twice.
func (s *Store) MarkTweetPublished(ctx context.Context, id int64, externalID string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tweets
         SET status = ?, external_id = ?, error_message = NULL, published_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		TweetPublished,
		externalID,
		now,
		now,
		id,
		TweetDraft,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("mark tweet published: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkTweetFailed records a publish failure on the draft. The draft stays
// retryable; attempt accounting lives on the owning generation.
func (s *Store) MarkTweetFailed(ctx context.Context, id int64, message string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tweets SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		TweetFailed,
		nullableString(message),
		now,
		id,
		TweetDraft,
	)
	if err != nil {
		return false, fmt.Errorf("mark tweet failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RetryFailedTweet moves a failed tweet back to draft for republishing.
func (s *Store) RetryFailedTweet(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tweets SET status = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		TweetDraft,
		now,
		id,
		TweetFailed,
	)
	if err != nil {
		return false, fmt.Errorf("retry tweet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// HasPublishedTweet reports whether any tweet for the generation reached the
// published state.
func (s *Store) HasPublishedTweet(ctx context.Context, generationID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM tweets WHERE tweet_generation_id = ? AND status = ?`,
		generationID,
		TweetPublished,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count published tweets: %w", err)
	}
	return count > 0, nil
}
