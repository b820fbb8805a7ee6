package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"brandkit/internal/brand"
	"brandkit/internal/services"
)

// VariantRecord is a persisted download variant with its last access time.
type VariantRecord struct {
	brand.DownloadVariant
	LastAccess time.Time
}

const variantColumns = `asset_id, format, quality, content_type, size_bytes, sha256, blob_ref, url, created_at, last_access`

// PutVariant inserts or replaces a variant row.
func (s *Store) PutVariant(ctx context.Context, v brand.DownloadVariant) error {
	now := formatTime(time.Now())
	_, err := s.exec(ctx,
		`INSERT INTO variants (`+variantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(asset_id, format, quality) DO UPDATE SET
             content_type = excluded.content_type, size_bytes = excluded.size_bytes, sha256 = excluded.sha256,
             blob_ref = excluded.blob_ref, url = excluded.url, last_access = excluded.last_access`,
		v.AssetID, v.Format, v.Quality, v.ContentType, v.SizeBytes, v.SHA256, v.BlobRef, v.URL, formatTime(v.CreatedAt), now,
	)
	if err != nil {
		return fmt.Errorf("put variant: %w", err)
	}
	return nil
}

// GetVariant loads a variant by key. A missing key is NotFound.
func (s *Store) GetVariant(ctx context.Context, assetID, format, quality string) (*VariantRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+variantColumns+` FROM variants WHERE asset_id = ? AND format = ? AND quality = ?`,
		assetID, format, quality,
	)
	v, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get variant", "variant not cached", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

// TouchVariant records an access for LRU ordering.
func (s *Store) TouchVariant(ctx context.Context, assetID, format, quality string, at time.Time) error {
	_, err := s.exec(ctx,
		`UPDATE variants SET last_access = ? WHERE asset_id = ? AND format = ? AND quality = ?`,
		formatTime(at), assetID, format, quality,
	)
	if err != nil {
		return fmt.Errorf("touch variant: %w", err)
	}
	return nil
}

// DeleteVariant removes a variant row.
func (s *Store) DeleteVariant(ctx context.Context, assetID, format, quality string) error {
	_, err := s.exec(ctx,
		`DELETE FROM variants WHERE asset_id = ? AND format = ? AND quality = ?`,
		assetID, format, quality,
	)
	if err != nil {
		return fmt.Errorf("delete variant: %w", err)
	}
	return nil
}

// ListVariants returns every variant, least recently used first.
func (s *Store) ListVariants(ctx context.Context) ([]VariantRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+variantColumns+` FROM variants ORDER BY last_access, asset_id, format, quality`)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var out []VariantRecord
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanVariant(scanner interface{ Scan(dest ...any) error }) (*VariantRecord, error) {
	var (
		v          VariantRecord
		createdRaw string
		accessRaw  string
	)
	if err := scanner.Scan(
		&v.AssetID, &v.Format, &v.Quality, &v.ContentType, &v.SizeBytes, &v.SHA256, &v.BlobRef, &v.URL, &createdRaw, &accessRaw,
	); err != nil {
		return nil, err
	}
	v.CreatedAt = parseTime(createdRaw)
	v.LastAccess = parseTime(accessRaw)
	return &v, nil
}
