package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolbot/lockbox/internal/model"
	"github.com/schoolbot/lockbox/pkg/id"
)

// UserStore persists model.User and its child failure events in the
// private database.
type UserStore struct {
	pool *pgxpool.Pool
}

// Create inserts a new user. Token and Active must already be set by the
// caller; created_at and updated_at are set to now() by the insert.
func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	identity, err := json.Marshal(u.CachedIdentity)
	if err != nil {
		return fmt.Errorf("store: marshal identity: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (token, login, encrypted_password, cached_identity, active, course_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, u.Token, u.Login, u.EncryptedPassword, identity, u.Active, u.CourseIDs)
	if err != nil {
		return fmt.Errorf("store: create user: %w", err)
	}
	return nil
}

// Get fetches a user by token, including its failure events.
func (s *UserStore) Get(ctx context.Context, token string) (*model.User, error) {
	u, err := s.getUserRow(ctx, token)
	if err != nil {
		return nil, err
	}

	events, err := s.failureEvents(ctx, token)
	if err != nil {
		return nil, err
	}
	u.FailureEvents = events

	return u, nil
}

func (s *UserStore) getUserRow(ctx context.Context, token string) (*model.User, error) {
	var (
		u              model.User
		identity       []byte
		lastFillResult []byte
	)
	u.Token = token

	err := s.pool.QueryRow(ctx, `
		SELECT login, encrypted_password, cached_identity, active, course_ids, last_fill_result, created_at, updated_at
		FROM users WHERE token = $1
	`, token).Scan(&u.Login, &u.EncryptedPassword, &identity, &u.Active, &u.CourseIDs, &lastFillResult, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}

	if len(identity) > 0 {
		if err := json.Unmarshal(identity, &u.CachedIdentity); err != nil {
			return nil, fmt.Errorf("store: unmarshal identity: %w", err)
		}
	}
	if len(lastFillResult) > 0 {
		var r model.FillFormResult
		if err := json.Unmarshal(lastFillResult, &r); err != nil {
			return nil, fmt.Errorf("store: unmarshal last fill result: %w", err)
		}
		u.LastFillResult = &r
	}

	return &u, nil
}

func (s *UserStore) failureEvents(ctx context.Context, token string) ([]model.FailureEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, occurred_at, kind, message FROM user_failure_events
		WHERE user_token = $1 ORDER BY occurred_at ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("store: list failure events: %w", err)
	}
	defer rows.Close()

	var events []model.FailureEvent
	for rows.Next() {
		var e model.FailureEvent
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Kind, &e.Message); err != nil {
			return nil, fmt.Errorf("store: scan failure event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateIdentityAndCredentials applies the mutable fields PATCH /user
// accepts: login, encrypted password, active flag, and identity overrides.
func (s *UserStore) UpdateIdentityAndCredentials(ctx context.Context, token string, login, encryptedPassword *string, active *bool, identity model.Identity) error {
	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("store: marshal identity: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET
			login = COALESCE($2, login),
			encrypted_password = COALESCE($3, encrypted_password),
			active = COALESCE($4, active),
			cached_identity = $5,
			updated_at = now()
		WHERE token = $1
	`, token, login, encryptedPassword, active, identityJSON)
	if err != nil {
		return fmt.Errorf("store: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCourseIDs replaces a user's resolved course id list (nil means
// "pending", per model.User.CourseIDs).
func (s *UserStore) SetCourseIDs(ctx context.Context, token string, ids *[]string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET course_ids = $2, updated_at = now() WHERE token = $1`, token, ids)
	if err != nil {
		return fmt.Errorf("store: set course ids: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLastFillResult overwrites the embedded last-fill-result in one
// statement.
func (s *UserStore) SetLastFillResult(ctx context.Context, token string, result model.FillFormResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: marshal fill result: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE users SET last_fill_result = $2, updated_at = now() WHERE token = $1`, token, payload)
	if err != nil {
		return fmt.Errorf("store: set last fill result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PushFailureEvent appends one failure event for the user.
func (s *UserStore) PushFailureEvent(ctx context.Context, token string, e model.FailureEvent) error {
	if e.ID == "" {
		e.ID = id.NewShortID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_failure_events (id, user_token, occurred_at, kind, message)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, token, e.Timestamp, e.Kind, e.Message)
	if err != nil {
		return fmt.Errorf("store: push failure event: %w", err)
	}
	return nil
}

// PullFailureEvent removes one failure event by id.
func (s *UserStore) PullFailureEvent(ctx context.Context, token, eventID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_failure_events WHERE user_token = $1 AND id = $2`, token, eventID)
	if err != nil {
		return fmt.Errorf("store: pull failure event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user and its failure events (cascade).
func (s *UserStore) Delete(ctx context.Context, token string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("store: delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveWithCredentials returns every user with active=true, a non-null
// login, and a non-null encrypted password - the set the check-day and
// update-all-courses tasks iterate over.
func (s *UserStore) ListActiveWithCredentials(ctx context.Context) ([]*model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token FROM users
		WHERE active AND login IS NOT NULL AND encrypted_password IS NOT NULL
		ORDER BY token
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list active users: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("store: scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(tokens))
	for _, token := range tokens {
		u, err := s.Get(ctx, token)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}
