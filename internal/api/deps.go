// Package api implements the internal HTTP API a frontend consumes to
// drive the task engine: user CRUD, course and form-geometry lookups,
// and the debug task-inspection endpoints. Routed with chi, secured by
// a bearer-token Auth middleware backed by the same request-id/CORS/
// recover/timeout middleware stack the rest of the module uses.
package api

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/schoolbot/lockbox/internal/blob"
	"github.com/schoolbot/lockbox/internal/config"
	"github.com/schoolbot/lockbox/internal/model"
	"github.com/schoolbot/lockbox/internal/portal"
	"github.com/schoolbot/lockbox/internal/scheduler"
	"github.com/schoolbot/lockbox/internal/store"
	"github.com/schoolbot/lockbox/internal/vault"
	"github.com/schoolbot/lockbox/pkg/cache"
)

// Deps is the dependency bundle every API handler closes over.
type Deps struct {
	Store  *store.Store
	Portal portal.Client
	Vault  *vault.Vault
	Blob   *blob.Manager
	Sched  *scheduler.Scheduler
	Config *config.Config
	Logger *slog.Logger
	Tokens cache.Cache[*model.User]
	Redis  redis.UniversalClient
}
