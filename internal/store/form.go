package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolbot/lockbox/internal/model"
)

// FormStore persists model.Form and its ordered model.FormField rows in
// the shared database.
type FormStore struct {
	pool *pgxpool.Pool
}

// Get fetches a form by id, with its fields ordered by index_on_page.
func (s *FormStore) Get(ctx context.Context, formID string) (*model.Form, error) {
	var f model.Form
	f.ID = formID
	err := s.pool.QueryRow(ctx, `SELECT name, thumbnail_id, is_default FROM forms WHERE id = $1`, formID).
		Scan(&f.Name, &f.ThumbnailID, &f.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get form: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT index_on_page, expected_label_segment, kind, target_value, critical
		FROM form_fields WHERE form_id = $1 ORDER BY index_on_page ASC
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("store: list form fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var field model.FormField
		if err := rows.Scan(&field.IndexOnPage, &field.ExpectedLabelSegment, &field.Kind, &field.TargetValue, &field.Critical); err != nil {
			return nil, fmt.Errorf("store: scan form field: %w", err)
		}
		f.Fields = append(f.Fields, field)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := validateFields(f.Fields); err != nil {
		return nil, err
	}

	return &f, nil
}

// validateFields enforces the form field invariants defensively at read
// time, in addition to the schema's PRIMARY KEY (form_id, index_on_page)
// that enforces the first half at write time.
func validateFields(fields []model.FormField) error {
	for i, a := range fields {
		for j, b := range fields {
			if i == j {
				continue
			}
			if a.ExpectedLabelSegment != "" && b.ExpectedLabelSegment != "" &&
				a.ExpectedLabelSegment != b.ExpectedLabelSegment &&
				strings.Contains(b.ExpectedLabelSegment, a.ExpectedLabelSegment) {
				return fmt.Errorf("store: form invariant violated: %q is a substring of %q", a.ExpectedLabelSegment, b.ExpectedLabelSegment)
			}
		}
	}
	return nil
}
