package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolbot/lockbox/internal/model"
)

// TestStore persists model.FormFillingTest in the shared database.
type TestStore struct {
	pool *pgxpool.Pool
}

// Create inserts a new FormFillingTest. id and userToken/courseID must
// already be set by the caller; the row starts unscheduled and
// unfinished.
func (s *TestStore) Create(ctx context.Context, id, userToken, courseID string) (*model.FormFillingTest, error) {
	t := &model.FormFillingTest{ID: id, UserToken: userToken, CourseID: courseID, CreatedAt: timeNow()}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO form_filling_tests (id, user_token, course_id, is_finished, in_progress, is_scheduled, failures, created_at)
		VALUES ($1, $2, $3, FALSE, FALSE, FALSE, '[]', $4)
	`, t.ID, t.UserToken, t.CourseID, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: create test: %w", err)
	}
	return t, nil
}

// Get fetches a FormFillingTest by id.
func (s *TestStore) Get(ctx context.Context, testID string) (*model.FormFillingTest, error) {
	var (
		t         model.FormFillingTest
		failures  []byte
		result    []byte
	)
	t.ID = testID

	err := s.pool.QueryRow(ctx, `
		SELECT user_token, course_id, is_finished, in_progress, is_scheduled, failures, result, created_at
		FROM form_filling_tests WHERE id = $1
	`, testID).Scan(&t.UserToken, &t.CourseID, &t.IsFinished, &t.InProgress, &t.IsScheduled, &failures, &result, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get test: %w", err)
	}

	if len(failures) > 0 {
		if err := json.Unmarshal(failures, &t.Failures); err != nil {
			return nil, fmt.Errorf("store: unmarshal test failures: %w", err)
		}
	}
	if len(result) > 0 {
		var r model.FillFormResult
		if err := json.Unmarshal(result, &r); err != nil {
			return nil, fmt.Errorf("store: unmarshal test result: %w", err)
		}
		t.Result = &r
	}

	return &t, nil
}

// MarkScheduled flips is_scheduled, set when test-fill-form is enqueued
// for this test.
func (s *TestStore) MarkScheduled(ctx context.Context, testID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE form_filling_tests SET is_scheduled = TRUE WHERE id = $1`, testID)
	if err != nil {
		return fmt.Errorf("store: mark test scheduled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkInProgress flips in_progress at the start of the test-fill-form
// handler's run.
func (s *TestStore) MarkInProgress(ctx context.Context, testID string, inProgress bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE form_filling_tests SET in_progress = $2 WHERE id = $1`, testID, inProgress)
	if err != nil {
		return fmt.Errorf("store: mark test in progress: %w", err)
	}
	return nil
}

// PushFailure atomically appends a failure to a test's failure list.
func (s *TestStore) PushFailure(ctx context.Context, testID string, f model.FailureEvent) error {
	t, err := s.Get(ctx, testID)
	if err != nil {
		return err
	}
	t.Failures = append(t.Failures, f)
	payload, err := json.Marshal(t.Failures)
	if err != nil {
		return fmt.Errorf("store: marshal test failures: %w", err)
	}
	_, err = s.pool.Exec(ctx, `UPDATE form_filling_tests SET failures = $2 WHERE id = $1`, testID, payload)
	if err != nil {
		return fmt.Errorf("store: push test failure: %w", err)
	}
	return nil
}

// Finish writes the final result and marks the test finished (terminal
// for both success and failure runs, since test-fill-form is always a dry
// run with no retry).
func (s *TestStore) Finish(ctx context.Context, testID string, result model.FillFormResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: marshal test result: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE form_filling_tests SET result = $2, is_finished = TRUE, in_progress = FALSE
		WHERE id = $1
	`, testID, payload)
	if err != nil {
		return fmt.Errorf("store: finish test: %w", err)
	}
	return nil
}

// Delete removes a test, used by the remove-old-test-results cleanup task
// after its TTL expires.
func (s *TestStore) Delete(ctx context.Context, testID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM form_filling_tests WHERE id = $1`, testID)
	if err != nil {
		return fmt.Errorf("store: delete test: %w", err)
	}
	return nil
}
