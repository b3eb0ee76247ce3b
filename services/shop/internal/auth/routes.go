package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteRegistrar is a handler module that mounts its own routes.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// GuardedModule mounts modules behind a guard middleware.
type GuardedModule struct {
	guard   func(http.Handler) http.Handler
	modules []RouteRegistrar
}

func Guarded(guard func(http.Handler) http.Handler, modules ...RouteRegistrar) *GuardedModule {
	return &GuardedModule{guard: guard, modules: modules}
}

func (g *GuardedModule) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(g.guard)
		for _, m := range g.modules {
			m.RegisterRoutes(r)
		}
	})
}
