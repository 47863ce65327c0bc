package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetAppConfig stores a runtime key/value override.
func (s *Store) SetAppConfig(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		value,
		now,
	); err != nil {
		return fmt.Errorf("set app config: %w", err)
	}
	return nil
}

// AppConfig returns a runtime override value. The second return reports
// whether the key exists.
func (s *Store) AppConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get app config: %w", err)
	}
	return value, true, nil
}

// AppConfigAll returns every stored runtime override.
func (s *Store) AppConfigAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query app config: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan app config: %w", err)
		}
		values[key] = value
	}
	return values, rows.Err()
}

// DeleteAppConfig removes a runtime override.
func (s *Store) DeleteAppConfig(ctx context.Context, key string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM app_config WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete app config: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
