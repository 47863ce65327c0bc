package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertUser stores sealed publishing credentials for a Twitter handle.
func (s *Store) UpsertUser(ctx context.Context, handle string, credentials []byte) (*User, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO users (handle, credentials, created_at, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(handle) DO UPDATE SET credentials = excluded.credentials, updated_at = excluded.updated_at`,
		handle,
		credentials,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.UserByHandle(ctx, handle)
}

// UserByHandle fetches a user and their sealed credentials.
func (s *Store) UserByHandle(ctx context.Context, handle string) (*User, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, handle, credentials, created_at, updated_at FROM users WHERE handle = ?`,
		handle,
	)

	var (
		user       User
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	err := row.Scan(&user.ID, &user.Handle, &user.Credentials, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		user.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		user.UpdatedAt = updated
	}
	return &user, nil
}

// Users lists stored handles without exposing credential blobs.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT handle FROM users ORDER BY handle`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		handles = append(handles, handle)
	}
	return handles, rows.Err()
}

// RemoveUser deletes a stored credential record.
func (s *Store) RemoveUser(ctx context.Context, handle string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM users WHERE handle = ?`, handle)
	if err != nil {
		return false, fmt.Errorf("remove user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
