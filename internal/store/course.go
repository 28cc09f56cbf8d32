package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolbot/lockbox/internal/model"
	"github.com/schoolbot/lockbox/pkg/id"
)

// CourseStore persists model.Course in the shared database.
type CourseStore struct {
	pool *pgxpool.Pool
}

// GetByCode fetches a course by its unique course_code.
func (s *CourseStore) GetByCode(ctx context.Context, code string) (*model.Course, error) {
	var c model.Course
	c.CourseCode = code
	err := s.pool.QueryRow(ctx, `
		SELECT id, configuration_locked, has_attendance_form, form_url, form_id, known_slots, teacher_name
		FROM courses WHERE course_code = $1
	`, code).Scan(&c.ID, &c.ConfigurationLocked, &c.HasAttendanceForm, &c.FormURL, &c.FormID, &c.KnownSlots, &c.TeacherName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get course: %w", err)
	}
	return &c, nil
}

// GetByID fetches a course by its opaque id.
func (s *CourseStore) GetByID(ctx context.Context, courseID string) (*model.Course, error) {
	var c model.Course
	c.ID = courseID
	err := s.pool.QueryRow(ctx, `
		SELECT course_code, configuration_locked, has_attendance_form, form_url, form_id, known_slots, teacher_name
		FROM courses WHERE id = $1
	`, courseID).Scan(&c.CourseCode, &c.ConfigurationLocked, &c.HasAttendanceForm, &c.FormURL, &c.FormID, &c.KnownSlots, &c.TeacherName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get course by id: %w", err)
	}
	return &c, nil
}

// UpsertByCode creates a course if course_code is unseen, or returns the
// existing row untouched - populate-courses must be idempotent and must
// never clobber an administrator's locked configuration.
func (s *CourseStore) UpsertByCode(ctx context.Context, code string) (*model.Course, error) {
	existing, err := s.GetByCode(ctx, code)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	c := &model.Course{ID: id.NewShortID(), CourseCode: code}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO courses (id, course_code, known_slots) VALUES ($1, $2, '{}')
		ON CONFLICT (course_code) DO NOTHING
	`, c.ID, c.CourseCode)
	if err != nil {
		return nil, fmt.Errorf("store: upsert course: %w", err)
	}
	return s.GetByCode(ctx, code)
}

// AddKnownSlot appends a slot string to known_slots if not already
// present.
func (s *CourseStore) AddKnownSlot(ctx context.Context, courseID, slot string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE courses SET known_slots = array_append(known_slots, $2)
		WHERE id = $1 AND NOT ($2 = ANY(known_slots))
	`, courseID, slot)
	if err != nil {
		return fmt.Errorf("store: add known slot: %w", err)
	}
	return nil
}

// SetTeacherNameIfUnset sets teacher_name only when it is currently null
// or empty.
func (s *CourseStore) SetTeacherNameIfUnset(ctx context.Context, courseID, teacherName string) error {
	if teacherName == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE courses SET teacher_name = $2
		WHERE id = $1 AND (teacher_name IS NULL OR teacher_name = '')
	`, courseID, teacherName)
	if err != nil {
		return fmt.Errorf("store: set teacher name: %w", err)
	}
	return nil
}
