package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolbot/lockbox/internal/model"
)

// GeometryStore persists model.CachedFormGeometry, keyed by URL, in the
// private database.
type GeometryStore struct {
	pool *pgxpool.Pool
}

// CreatePending inserts a new pending geometry entry for url, or returns
// the existing one if already present.
func (s *GeometryStore) CreatePending(ctx context.Context, id, url, requestedByUser string) (*model.CachedFormGeometry, error) {
	existing, err := s.GetByURL(ctx, url)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	g := &model.CachedFormGeometry{
		ID:              id,
		URL:             url,
		RequestedByUser: requestedByUser,
		Status:          model.GeometryPending,
		CreatedAt:       timeNow(),
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cached_form_geometries (id, url, requested_by_user, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, g.ID, g.URL, g.RequestedByUser, g.Status, g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: create geometry: %w", err)
	}
	return g, nil
}

// GetByURL fetches a cached geometry by its URL.
func (s *GeometryStore) GetByURL(ctx context.Context, url string) (*model.CachedFormGeometry, error) {
	var (
		g         model.CachedFormGeometry
		questions []byte
	)
	g.URL = url

	err := s.pool.QueryRow(ctx, `
		SELECT id, requested_by_user, status, questions, auth_required, screenshot_id, response_status, error, created_at
		FROM cached_form_geometries WHERE url = $1
	`, url).Scan(&g.ID, &g.RequestedByUser, &g.Status, &questions, &g.AuthRequired, &g.ScreenshotID, &g.ResponseStatus, &g.Error, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get geometry: %w", err)
	}

	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &g.Questions); err != nil {
			return nil, fmt.Errorf("store: unmarshal questions: %w", err)
		}
	}
	return &g, nil
}

// GetByID fetches a cached geometry by id, used by the get-form-geometry
// task handler which receives the id as its job argument.
func (s *GeometryStore) GetByID(ctx context.Context, id string) (*model.CachedFormGeometry, error) {
	var url string
	err := s.pool.QueryRow(ctx, `SELECT url FROM cached_form_geometries WHERE id = $1`, id).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get geometry by id: %w", err)
	}
	return s.GetByURL(ctx, url)
}

// CompleteSuccess fills in a geometry's discovered layout.
func (s *GeometryStore) CompleteSuccess(ctx context.Context, id string, questions []model.Question, authRequired bool, screenshotID *string) error {
	payload, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("store: marshal questions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE cached_form_geometries SET status = $2, questions = $3, auth_required = $4, screenshot_id = $5
		WHERE id = $1
	`, id, model.GeometryComplete, payload, authRequired, screenshotID)
	if err != nil {
		return fmt.Errorf("store: complete geometry: %w", err)
	}
	return nil
}

// CompleteError records a failed geometry probe.
func (s *GeometryStore) CompleteError(ctx context.Context, id string, responseStatus *int, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE cached_form_geometries SET status = $2, response_status = $3, error = $4
		WHERE id = $1
	`, id, model.GeometryError, responseStatus, errMsg)
	if err != nil {
		return fmt.Errorf("store: error geometry: %w", err)
	}
	return nil
}

// Delete removes a geometry entry; used by the remove-old-form-geometry
// cleanup task after its TTL expires.
func (s *GeometryStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cached_form_geometries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete geometry: %w", err)
	}
	return nil
}

func timeNow() time.Time { return time.Now().UTC() }
