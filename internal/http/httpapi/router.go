package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"icongen/internal/http/handlers"
)

// NewRouter wires the API routes and serves stored artifacts under /output.
func NewRouter(app *handlers.App, storagePath string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/config", app.ServiceConfig)

	r.Post("/v1/generate", app.Generate)
	r.Get("/v1/status/{job_id}", app.Status)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Get("/", app.Jobs)
		r.Get("/{job_id}/zip", app.Zip)
	})

	fs := stdhttp.FileServer(stdhttp.Dir(storagePath))
	r.Handle("/output/*", stdhttp.StripPrefix("/output/", fs))

	return r
}
