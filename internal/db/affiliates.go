package db

import (
	"context"
	"errors"
	"time"

	"content-empire/manager-go/internal/utils"
	"github.com/jackc/pgx/v5"
)

type Affiliate struct {
	Name      string
	URL       string
	Tag       string
	Enabled   bool
	UpdatedAt time.Time
}

func (s *Store) UpsertAffiliate(ctx context.Context, a Affiliate) error {
	utils.Debug("db upsert affiliate", "name", a.Name)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO affiliates (name, url, tag, enabled, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (name) DO UPDATE SET
			url = EXCLUDED.url,
			tag = EXCLUDED.tag,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
	`, a.Name, a.URL, a.Tag, a.Enabled)
	return err
}

func (s *Store) GetAffiliate(ctx context.Context, name string) (Affiliate, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT name, url, tag, enabled, updated_at
		FROM affiliates
		WHERE name = $1
	`, name)
	var a Affiliate
	err := row.Scan(&a.Name, &a.URL, &a.Tag, &a.Enabled, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Affiliate{}, nil
		}
		return Affiliate{}, err
	}
	return a, nil
}

func (s *Store) ListAffiliates(ctx context.Context, enabledOnly bool) ([]Affiliate, error) {
	query := `
		SELECT name, url, tag, enabled, updated_at
		FROM affiliates
	`
	if enabledOnly {
		query += ` WHERE enabled = true`
	}
	query += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var affiliates []Affiliate
	for rows.Next() {
		var a Affiliate
		if err := rows.Scan(&a.Name, &a.URL, &a.Tag, &a.Enabled, &a.UpdatedAt); err != nil {
			return nil, err
		}
		affiliates = append(affiliates, a)
	}
	return affiliates, rows.Err()
}

func (s *Store) SetAffiliateEnabled(ctx context.Context, name string, enabled bool) error {
	utils.Debug("db set affiliate enabled", "name", name, "enabled", enabled)
	tag, err := s.pool.Exec(ctx, `
		UPDATE affiliates
		SET enabled = $1,
			updated_at = NOW()
		WHERE name = $2
	`, enabled, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("affiliate not found: " + name)
	}
	return nil
}
