package db

import (
	"context"
	"errors"
	"time"

	"content-empire/manager-go/internal/utils"
	"github.com/jackc/pgx/v5"
)

type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	utils.Debug("db get setting", "key", key)
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value
		FROM settings
		WHERE key = $1
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	utils.Debug("db set setting", "key", key)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, key, value)
	return err
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	utils.Debug("db delete setting", "key", key)
	_, err := s.pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	return err
}

func (s *Store) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, value, updated_at
		FROM settings
		ORDER BY key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, st)
	}
	return settings, rows.Err()
}
