package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"brandkit/internal/brand"
	"brandkit/internal/platform"
	"brandkit/internal/services"
)

const assetColumns = `id, brand_id, content_type, platform_id, base_ref, final_ref, final_url, width, height,
 duration_seconds, prompt, provider, created_at`

// InsertAsset persists a composited asset. An asset without a final URL never
// reaches the table.
func (s *Store) InsertAsset(ctx context.Context, a *brand.ContentAsset) error {
	if a == nil || a.ID == "" || a.BrandID == "" {
		return services.Wrap(services.ErrValidation, "store", "insert asset", "asset id and brand id are required", nil)
	}
	if strings.TrimSpace(a.FinalURL) == "" || strings.TrimSpace(a.FinalRef) == "" {
		return services.Wrap(services.ErrValidation, "store", "insert asset", "asset has no composited output", nil)
	}
	_, err := s.exec(ctx,
		`INSERT INTO assets (`+assetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.BrandID, string(a.ContentType), string(a.PlatformID), a.BaseRef, a.FinalRef, a.FinalURL,
		a.Width, a.Height, a.DurationSeconds, a.Prompt, a.Provider, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetAsset loads one asset. A missing id is NotFound.
func (s *Store) GetAsset(ctx context.Context, id string) (*brand.ContentAsset, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get asset", fmt.Sprintf("asset %s not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// ListAssets returns assets newest first, optionally filtered by brand.
func (s *Store) ListAssets(ctx context.Context, brandID string) ([]*brand.ContentAsset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	var args []any
	if brandID != "" {
		query += ` WHERE brand_id = ?`
		args = append(args, brandID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []*brand.ContentAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAssets returns the number of assets for a brand.
func (s *Store) CountAssets(ctx context.Context, brandID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM assets WHERE brand_id = ?`, brandID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return n, nil
}

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*brand.ContentAsset, error) {
	var (
		a           brand.ContentAsset
		contentType string
		platformID  string
		createdRaw  string
	)
	if err := scanner.Scan(
		&a.ID, &a.BrandID, &contentType, &platformID, &a.BaseRef, &a.FinalRef, &a.FinalURL,
		&a.Width, &a.Height, &a.DurationSeconds, &a.Prompt, &a.Provider, &createdRaw,
	); err != nil {
		return nil, err
	}
	a.ContentType = brand.ContentType(contentType)
	a.PlatformID = platform.ID(platformID)
	a.CreatedAt = parseTime(createdRaw)
	return &a, nil
}
