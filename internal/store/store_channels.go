package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AddChannel registers a channel for tracking. Adding an already known
// channel refreshes its title and reactivates it.
func (s *Store) AddChannel(ctx context.Context, externalID, title string) (*Channel, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO channels (external_id, title, active, created_at, updated_at)
         VALUES (?, ?, 1, ?, ?)
         ON CONFLICT(external_id) DO UPDATE SET title = excluded.title, active = 1, updated_at = excluded.updated_at`,
		externalID,
		nullableString(title),
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return s.ChannelByExternalID(ctx, externalID)
}

// ChannelByID fetches a channel by row identifier.
func (s *Store) ChannelByID(ctx context.Context, id int64) (*Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return channel, nil
}

// ChannelByExternalID fetches a channel by its upstream identifier.
func (s *Store) ChannelByExternalID(ctx context.Context, externalID string) (*Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE external_id = ?`, externalID)
	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel by external id: %w", err)
	}
	return channel, nil
}

// Channels lists tracked channels, optionally restricted to active ones.
func (s *Store) Channels(ctx context.Context, activeOnly bool) ([]*Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []*Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, channel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// SetChannelActive toggles whether a channel participates in scheduled runs.
func (s *Store) SetChannelActive(ctx context.Context, externalID string, active bool) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE channels SET active = ?, updated_at = ? WHERE external_id = ?`,
		boolToInt(active),
		time.Now().UTC().Format(time.RFC3339Nano),
		externalID,
	)
	if err != nil {
		return false, fmt.Errorf("set channel active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// AdvanceWatermark moves the channel discovery watermark forward. The guard
// keeps a concurrent run from dragging the watermark backwards.
func (s *Store) AdvanceWatermark(ctx context.Context, channelID int64, watermark time.Time) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE channels SET watermark = ?, updated_at = ?
         WHERE id = ? AND (watermark IS NULL OR watermark < ?)`,
		watermark.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		channelID,
		watermark.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}
