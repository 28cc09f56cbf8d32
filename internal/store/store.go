// Package store persists the private (User, CachedFormGeometry) and
// shared (Course, Form, FormFillingTest) entities across two logical
// Postgres databases, using pkg/db's connect + goose-migration
// convention. Task persistence is not part of this package: a task is
// realized directly on River's own job table (see internal/scheduler
// and DESIGN.md).
package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolbot/lockbox/pkg/db"
)

//go:embed migrations/private/migrations/*.sql
var privateMigrations embed.FS

//go:embed migrations/shared/migrations/*.sql
var sharedMigrations embed.FS

// Store bundles every repository over the two logical databases.
type Store struct {
	Users      *UserStore
	Geometries *GeometryStore
	Courses    *CourseStore
	Forms      *FormStore
	Tests      *TestStore

	privatePool *pgxpool.Pool
	sharedPool  *pgxpool.Pool
}

// Open connects to both logical databases and runs their migrations.
func Open(ctx context.Context, privateConnString, sharedConnString string, log *slog.Logger) (*Store, error) {
	privatePool, err := db.Open(ctx, privateConnString,
		db.WithMigrations(privateMigrations),
		db.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("store: open private db: %w", err)
	}

	sharedPool, err := db.Open(ctx, sharedConnString,
		db.WithMigrations(sharedMigrations),
		db.WithLogger(log),
	)
	if err != nil {
		privatePool.Close()
		return nil, fmt.Errorf("store: open shared db: %w", err)
	}

	return &Store{
		Users:       &UserStore{pool: privatePool},
		Geometries:  &GeometryStore{pool: privatePool},
		Courses:     &CourseStore{pool: sharedPool},
		Forms:       &FormStore{pool: sharedPool},
		Tests:       &TestStore{pool: sharedPool},
		privatePool: privatePool,
		sharedPool:  sharedPool,
	}, nil
}

// PrivatePool exposes the private-database pool, used by internal/scheduler
// to build the River client (Tasks live in River's own job table there).
func (s *Store) PrivatePool() *pgxpool.Pool { return s.privatePool }

// Close releases both connection pools.
func (s *Store) Close() {
	s.privatePool.Close()
	s.sharedPool.Close()
}
