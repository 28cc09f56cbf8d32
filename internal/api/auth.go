package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/schoolbot/lockbox/internal/model"
	"github.com/schoolbot/lockbox/internal/store"
	"github.com/schoolbot/lockbox/pkg/cache"
)

type userCtxKey struct{}

// tokenCacheTTL bounds how stale a cached bearer-token lookup may be.
const tokenCacheTTL = 30 * time.Second

// Auth resolves the Authorization: Bearer <token> header to a user,
// caching the token->user round trip in tokens to absorb repeated
// polling from the frontend without hammering the private database.
func Auth(users *store.UserStore, tokens cache.Cache[*model.User]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, errBadToken)
				return
			}

			u, err := lookupUser(r.Context(), users, tokens, token)
			if err != nil {
				writeError(w, errBadToken)
				return
			}

			ctx := context.WithValue(r.Context(), userCtxKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func lookupUser(ctx context.Context, users *store.UserStore, tokens cache.Cache[*model.User], token string) (*model.User, error) {
	if tokens != nil {
		if u, err := tokens.Get(ctx, token); err == nil {
			return u, nil
		} else if !errors.Is(err, cache.ErrNotFound) {
			// Cache backend trouble must not block auth; fall through to
			// the store.
		}
	}

	u, err := users.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	if tokens != nil {
		_ = tokens.Set(ctx, token, u, tokenCacheTTL)
	}
	return u, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// userFromContext retrieves the authenticated user placed there by Auth.
func userFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(userCtxKey{}).(*model.User)
	return u
}

// invalidateUser evicts a token's cached user after a mutation, so the
// next request re-reads the store instead of serving stale data for up
// to tokenCacheTTL.
func invalidateUser(ctx context.Context, tokens cache.Cache[*model.User], token string) {
	if tokens == nil {
		return
	}
	_ = tokens.Delete(ctx, token)
}
