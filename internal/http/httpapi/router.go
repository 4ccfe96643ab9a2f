package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"planner/internal/http/handlers"
	"planner/internal/infra"
	"planner/internal/middleware"
)

// Options configures the router middlewares and mounts.
type Options struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	// Static serves locally stored objects under /static when set.
	Static http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	if opts.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", opts.Static))
	}

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Route("/veo", func(r chi.Router) {
			r.Post("/generate", app.AnimationsGenerate)
			r.Post("/status", app.AnimationsStatus)
			r.Post("/regenerate", app.AnimationsRegenerate)
		})
		r.Route("/plans", func(r chi.Router) {
			r.Post("/", app.PlansCreate)
			r.Get("/", app.PlansList)
			r.Delete("/", app.PlansDelete)
			r.Get("/{id}", app.PlansGet)
		})
	})

	return r
}
