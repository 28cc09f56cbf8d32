package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/schoolbot/lockbox/middlewares"
	"github.com/schoolbot/lockbox/pkg/health"
	"github.com/schoolbot/lockbox/pkg/redis"
)

// Router builds the chi router for the internal HTTP API, wrapping every
// route with the request-id/CORS/recover/timeout stack and gating
// everything but health and POST /user under bearer-token Auth.
func (d *Deps) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middlewares.RequestID())
	r.Use(middlewares.CORS())
	r.Use(middlewares.Recover(middlewares.WithRecoverLogger(d.Logger)))
	r.Use(middlewares.Timeout(middlewares.DefaultTimeout))

	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(health.Checks{
		"database": func(ctx context.Context) error { return d.Store.PrivatePool().Ping(ctx) },
		"redis":    redis.Healthcheck(d.Redis),
	}, health.WithLogger(d.Logger)))

	r.Post("/user", d.CreateUser)

	r.Group(func(r chi.Router) {
		r.Use(Auth(d.Store.Users, d.Tokens))

		r.Patch("/user", d.PatchUser)
		r.Get("/user", d.GetUser)
		r.Delete("/user", d.DeleteUser)
		r.Delete("/user/error/{id}", d.DeleteUserError)

		r.Get("/user/courses", d.GetUserCourses)
		r.Post("/user/courses/update", d.UpdateUserCourses)

		r.Post("/form_geometry", d.PostFormGeometry)
		r.Post("/test_form", d.PostTestForm)

		r.Post("/update_all_courses", d.PostUpdateAllCourses)

		r.Get("/debug/tasks", d.GetDebugTasks)
		r.Post("/debug/tasks/update", d.PostDebugTasksUpdate)
	})

	return r
}
