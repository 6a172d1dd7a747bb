package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"icongen/internal/infra"
	"icongen/internal/job"
	"icongen/internal/storage"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Config       *infra.Config
	Logger       infra.Logger
	Orchestrator *job.Orchestrator
	Files        *storage.FileStore
}

// NewApp builds the handler container.
func NewApp(cfg *infra.Config, logger infra.Logger, orch *job.Orchestrator, files *storage.FileStore) *App {
	return &App{Config: cfg, Logger: logger, Orchestrator: orch, Files: files}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

// assetURL turns a storage key into a caller-reachable URL.
func (a *App) assetURL(key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimRight(a.Config.PublicBaseURL, "/") + "/output/" + key
}

// Health reports liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
