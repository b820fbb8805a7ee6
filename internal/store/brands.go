package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brandkit/internal/brand"
	"brandkit/internal/services"
)

const brandColumns = `id, name, source_url, color_primary, color_secondary, color_accent, color_background, color_text,
 heading_font, body_font, heading_weight, body_weight, tone, keywords_json, industry, extraction_status,
 error_kind, error_message, confirmed, logo_json, created_at, updated_at`

// CreateBrand inserts a new profile. Empty color and typography fields take defaults.
func (s *Store) CreateBrand(ctx context.Context, p *brand.Profile) error {
	if p == nil || p.ID == "" {
		return services.Wrap(services.ErrValidation, "store", "create brand", "brand id is required", nil)
	}
	p.ApplyDefaults()
	if p.ExtractionStatus == "" {
		p.ExtractionStatus = brand.StatusPending
	}
	keywords, err := json.Marshal(p.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	logo, err := marshalLogo(p.Logo)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	errKind, errMsg := extractionErrorColumns(p.ExtractionError)

	_, err = s.exec(ctx,
		`INSERT INTO brands (`+brandColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.SourceURL,
		p.Colors.Primary, p.Colors.Secondary, p.Colors.Accent, p.Colors.Background, p.Colors.Text,
		p.Typography.HeadingFont, p.Typography.BodyFont, p.Typography.HeadingWeight, p.Typography.BodyWeight,
		p.Tone, string(keywords), p.Industry, string(p.ExtractionStatus),
		errKind, errMsg, boolToInt(p.Confirmed), logo,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

// GetBrand loads a profile. A missing id is NotFound.
func (s *Store) GetBrand(ctx context.Context, id string) (*brand.Profile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+brandColumns+` FROM brands WHERE id = ?`, id)
	p, err := scanBrand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get brand", fmt.Sprintf("brand %s not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get brand: %w", err)
	}
	return p, nil
}

// ListBrands returns every profile, newest first.
func (s *Store) ListBrands(ctx context.Context) ([]*brand.Profile, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+brandColumns+` FROM brands ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	var out []*brand.Profile
	for rows.Next() {
		p, err := scanBrand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateExtraction moves a brand to status. Regressions, including any change
// away from complete or failed, are rejected with a ValidationError.
func (s *Store) UpdateExtraction(ctx context.Context, id string, status brand.ExtractionStatus, failure *brand.ExtractionError) error {
	return s.withBrandTx(ctx, id, "update extraction", func(tx *sql.Tx, current *brand.Profile) error {
		if err := checkTransition(current, status); err != nil {
			return err
		}
		errKind, errMsg := extractionErrorColumns(failure)
		_, err := tx.ExecContext(ctx,
			`UPDATE brands SET extraction_status = ?, error_kind = ?, error_message = ?, updated_at = ? WHERE id = ?`,
			string(status), errKind, errMsg, formatTime(time.Now()), id,
		)
		return err
	})
}

// CompleteExtraction stores analyzed fields and marks the brand complete in
// one transaction.
func (s *Store) CompleteExtraction(ctx context.Context, p *brand.Profile) error {
	if p == nil {
		return services.Wrap(services.ErrValidation, "store", "complete extraction", "profile is required", nil)
	}
	p.ApplyDefaults()
	keywords, err := json.Marshal(p.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	return s.withBrandTx(ctx, p.ID, "complete extraction", func(tx *sql.Tx, current *brand.Profile) error {
		if err := checkTransition(current, brand.StatusComplete); err != nil {
			return err
		}
		p.ExtractionStatus = brand.StatusComplete
		p.ExtractionError = nil
		p.UpdatedAt = time.Now().UTC()
		_, err := tx.ExecContext(ctx,
			`UPDATE brands SET name = ?, color_primary = ?, color_secondary = ?, color_accent = ?, color_background = ?,
             color_text = ?, heading_font = ?, body_font = ?, heading_weight = ?, body_weight = ?, tone = ?,
             keywords_json = ?, industry = ?, extraction_status = ?, error_kind = NULL, error_message = NULL,
             updated_at = ? WHERE id = ?`,
			p.Name, p.Colors.Primary, p.Colors.Secondary, p.Colors.Accent, p.Colors.Background,
			p.Colors.Text, p.Typography.HeadingFont, p.Typography.BodyFont, p.Typography.HeadingWeight, p.Typography.BodyWeight, p.Tone,
			string(keywords), p.Industry, string(brand.StatusComplete),
			formatTime(p.UpdatedAt), p.ID,
		)
		return err
	})
}

// SetLogo attaches a logo to a complete brand.
func (s *Store) SetLogo(ctx context.Context, id string, logo *brand.LogoSpec) error {
	if logo == nil {
		return services.Wrap(services.ErrValidation, "store", "set logo", "logo is required", nil)
	}
	if err := logo.Validate(); err != nil {
		return err
	}
	encoded, err := marshalLogo(logo)
	if err != nil {
		return err
	}
	return s.withBrandTx(ctx, id, "set logo", func(tx *sql.Tx, current *brand.Profile) error {
		if current.ExtractionStatus != brand.StatusComplete {
			return services.Wrap(services.ErrValidation, "store", "set logo",
				fmt.Sprintf("brand extraction is %s; logos can be set once it is complete", current.ExtractionStatus), nil)
		}
		_, err := tx.ExecContext(ctx, `UPDATE brands SET logo_json = ?, updated_at = ? WHERE id = ?`, encoded, formatTime(time.Now()), id)
		return err
	})
}

// Confirm marks a complete brand as reviewed by the user. Confirming twice is a no-op.
func (s *Store) Confirm(ctx context.Context, id string) error {
	return s.withBrandTx(ctx, id, "confirm", func(tx *sql.Tx, current *brand.Profile) error {
		if current.ExtractionStatus != brand.StatusComplete {
			return services.Wrap(services.ErrValidation, "store", "confirm",
				fmt.Sprintf("brand extraction is %s, not complete", current.ExtractionStatus), nil)
		}
		if current.Confirmed {
			return nil
		}
		_, err := tx.ExecContext(ctx, `UPDATE brands SET confirmed = 1, updated_at = ? WHERE id = ?`, formatTime(time.Now()), id)
		return err
	})
}

// FailInterrupted marks every non-terminal brand failed. Used at daemon
// startup, when no extraction can still be running.
func (s *Store) FailInterrupted(ctx context.Context, message string) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE brands SET extraction_status = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE extraction_status IN (?, ?, ?)`,
		string(brand.StatusFailed), services.ErrCanceled.Kind(), message, formatTime(time.Now()),
		string(brand.StatusPending), string(brand.StatusCrawling), string(brand.StatusAnalyzing),
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted brands: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) withBrandTx(ctx context.Context, id, operation string, fn func(*sql.Tx, *brand.Profile) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE id = ?`, id)
		current, err := scanBrand(row)
		if errors.Is(err, sql.ErrNoRows) {
			return services.Wrap(services.ErrNotFound, "store", operation, fmt.Sprintf("brand %s not found", id), nil)
		}
		if err != nil {
			return fmt.Errorf("%s: load brand: %w", operation, err)
		}
		if err := fn(tx, current); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func checkTransition(current *brand.Profile, next brand.ExtractionStatus) error {
	if !brand.CanTransition(current.ExtractionStatus, next) {
		return services.Wrap(services.ErrValidation, "store", "transition",
			fmt.Sprintf("extraction status cannot move from %s to %s", current.ExtractionStatus, next), nil)
	}
	return nil
}

func extractionErrorColumns(e *brand.ExtractionError) (any, any) {
	if e == nil {
		return nil, nil
	}
	return nullableString(e.Kind), nullableString(e.Message)
}

func marshalLogo(logo *brand.LogoSpec) (any, error) {
	if logo == nil {
		return nil, nil
	}
	data, err := json.Marshal(logo)
	if err != nil {
		return nil, fmt.Errorf("marshal logo: %w", err)
	}
	return string(data), nil
}

func scanBrand(scanner interface{ Scan(dest ...any) error }) (*brand.Profile, error) {
	var (
		p            brand.Profile
		keywordsJSON string
		status       string
		errKind      sql.NullString
		errMessage   sql.NullString
		confirmed    int
		logoJSON     sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&p.ID, &p.Name, &p.SourceURL,
		&p.Colors.Primary, &p.Colors.Secondary, &p.Colors.Accent, &p.Colors.Background, &p.Colors.Text,
		&p.Typography.HeadingFont, &p.Typography.BodyFont, &p.Typography.HeadingWeight, &p.Typography.BodyWeight,
		&p.Tone, &keywordsJSON, &p.Industry, &status,
		&errKind, &errMessage, &confirmed, &logoJSON, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	p.ExtractionStatus = brand.ExtractionStatus(status)
	if err := json.Unmarshal([]byte(keywordsJSON), &p.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if errKind.Valid || errMessage.Valid {
		p.ExtractionError = &brand.ExtractionError{Kind: errKind.String, Message: errMessage.String}
	}
	p.Confirmed = confirmed != 0
	if logoJSON.Valid && logoJSON.String != "" {
		var logo brand.LogoSpec
		if err := json.Unmarshal([]byte(logoJSON.String), &logo); err != nil {
			return nil, fmt.Errorf("decode logo: %w", err)
		}
		p.Logo = &logo
	}
	p.CreatedAt = parseTime(createdRaw)
	p.UpdatedAt = parseTime(updatedRaw)
	p.ApplyDefaults()
	return &p, nil
}
