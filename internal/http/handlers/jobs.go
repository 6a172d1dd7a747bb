package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"icongen/internal/backend"
	"icongen/internal/job"
	"icongen/internal/postproc"
	"icongen/internal/prompt"
	"icongen/pkg/zip"
)

type generateRequest struct {
	Subject       string   `json:"subject"`
	Style         string   `json:"style"`
	CustomStyle   string   `json:"custom_style"`
	Variations    int      `json:"variations"`
	Color         string   `json:"color"`
	Steps         *int     `json:"steps"`
	GuidanceScale *float64 `json:"guidance_scale"`
	RemoveBG      bool     `json:"remove_bg"`
	// ApplyMask defaults to true when omitted.
	ApplyMask   *bool  `json:"apply_mask"`
	Format      string `json:"format"`
	AspectRatio string `json:"aspect_ratio"`
	IconSizes   []int  `json:"icon_sizes"`

	Text         string `json:"text"`
	TextPosition string `json:"text_position"`
	TextColor    string `json:"text_color"`
	TextStyle    string `json:"text_style"`
	NoTextBox    bool   `json:"no_text_box"`

	Card *cardRequest `json:"card"`
}

type cardRequest struct {
	Text          string  `json:"text"`
	TextColor     string  `json:"text_color"`
	Background    string  `json:"background"`
	ImageFraction float64 `json:"image_fraction"`
}

type generateResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Generate starts a generation job and returns its id for polling.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	genReq, err := req.toGenerationRequest()
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	snap, err := a.Orchestrator.Submit(r.Context(), genReq)
	switch {
	case errors.Is(err, job.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	case errors.Is(err, job.ErrQueueFull):
		a.error(w, http.StatusServiceUnavailable, "busy", "worker queue is full")
		return
	case err != nil:
		a.error(w, http.StatusInternalServerError, "internal", "failed to submit job")
		return
	}

	a.json(w, http.StatusAccepted, generateResponse{
		JobID:   snap.ID,
		Status:  string(snap.Status),
		Message: snap.Message,
	})
}

// Status returns the full snapshot of one job.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	snap, ok := a.Orchestrator.Job(jobID)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, a.snapshotPayload(snap))
}

// Jobs lists the most recent jobs, newest first.
func (a *App) Jobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	snaps := a.Orchestrator.Jobs(limit)
	items := make([]map[string]any, 0, len(snaps))
	for _, snap := range snaps {
		items = append(items, map[string]any{
			"job_id":     snap.ID,
			"status":     string(snap.Status),
			"progress":   snap.Progress,
			"message":    snap.Message,
			"subject":    snap.Request.Subject,
			"style":      string(snap.Request.Style),
			"format":     string(snap.Request.Format),
			"created_at": snap.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// ServiceConfig exposes the knobs a client UI needs to build requests.
func (a *App) ServiceConfig(w http.ResponseWriter, r *http.Request) {
	id, err := backend.ParseID(a.Config.Backend)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "backend misconfigured")
		return
	}
	caps, err := backend.Lookup(id)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "backend misconfigured")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"styles":                 prompt.Styles(),
		"aspect_ratios":          postproc.Aspects(),
		"icon_sizes":             postproc.DefaultIconSizes(),
		"backend":                string(id),
		"default_steps":          caps.DefaultSteps,
		"default_guidance_scale": caps.DefaultGuidance,
		"default_variations":     job.DefaultVariations,
		"max_variations":         job.MaxVariations,
	})
}

// Zip streams every stored artifact of a completed job as one archive.
func (a *App) Zip(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	snap, ok := a.Orchestrator.Job(jobID)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if snap.Status != job.StatusCompleted {
		a.error(w, http.StatusConflict, "not_ready", "job has no artifacts yet")
		return
	}

	var assets []zip.Asset
	for _, variant := range snap.Variants {
		if data, err := a.Files.Read(r.Context(), variant.OriginalKey); err == nil {
			assets = append(assets, zip.Asset{
				Filename: fmt.Sprintf("originals/variant-%d.png", variant.Number),
				Data:     data,
			})
		}
		for _, artifact := range variant.Artifacts {
			data, err := a.Files.Read(r.Context(), artifact.Key)
			if err != nil {
				continue
			}
			assets = append(assets, zip.Asset{
				Filename: fmt.Sprintf("variant-%d/%s", variant.Number, artifact.Filename),
				Data:     data,
			})
		}
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", jobID))
	w.WriteHeader(http.StatusOK)
	if err := zip.Archive(w, assets); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: stream archive failed")
	}
}

func (a *App) snapshotPayload(snap job.Snapshot) map[string]any {
	variants := make([]map[string]any, 0, len(snap.Variants))
	for _, variant := range snap.Variants {
		artifacts := make([]map[string]any, 0, len(variant.Artifacts))
		for _, artifact := range variant.Artifacts {
			item := map[string]any{
				"filename": artifact.Filename,
				"url":      a.assetURL(artifact.Key),
			}
			if artifact.Size > 0 {
				item["size"] = artifact.Size
			}
			if artifact.Label != "" {
				item["label"] = artifact.Label
			}
			artifacts = append(artifacts, item)
		}
		variants = append(variants, map[string]any{
			"variant_number": variant.Number,
			"original_url":   a.assetURL(variant.OriginalKey),
			"artifacts":      artifacts,
		})
	}

	payload := map[string]any{
		"job_id":     snap.ID,
		"status":     string(snap.Status),
		"progress":   snap.Progress,
		"message":    snap.Message,
		"created_at": snap.CreatedAt,
		"subject":    snap.Request.Subject,
		"style":      string(snap.Request.Style),
		"format":     string(snap.Request.Format),
		"variants":   variants,
	}
	if snap.CompletedAt != nil {
		payload["completed_at"] = snap.CompletedAt
	}
	if snap.Error != "" {
		payload["error"] = snap.Error
	}
	if snap.Metadata != nil {
		payload["metadata"] = snap.Metadata
	}
	return payload
}

func (r *generateRequest) toGenerationRequest() (job.GenerationRequest, error) {
	genReq := job.GenerationRequest{
		Subject:          strings.TrimSpace(r.Subject),
		Style:            prompt.Style(strings.ToLower(strings.TrimSpace(r.Style))),
		CustomStyle:      strings.TrimSpace(r.CustomStyle),
		Variations:       r.Variations,
		Color:            strings.TrimSpace(r.Color),
		Steps:            r.Steps,
		GuidanceScale:    r.GuidanceScale,
		RemoveBackground: r.RemoveBG,
		ApplyMask:        true,
		Format:           job.OutputFormat(strings.ToLower(strings.TrimSpace(r.Format))),
		AspectRatio:      postproc.Aspect(strings.ToLower(strings.TrimSpace(r.AspectRatio))),
		IconSizes:        r.IconSizes,
	}
	if genReq.Style == "" {
		genReq.Style = prompt.StyleIOS
	}
	if r.ApplyMask != nil {
		genReq.ApplyMask = *r.ApplyMask
	}

	if r.Card != nil {
		card, err := r.Card.toCardLayout()
		if err != nil {
			return job.GenerationRequest{}, err
		}
		genReq.Card = card
	} else if strings.TrimSpace(r.Text) != "" {
		overlay, err := r.toOverlay()
		if err != nil {
			return job.GenerationRequest{}, err
		}
		genReq.Overlay = overlay
	}

	return genReq, nil
}

func (r *generateRequest) toOverlay() (*postproc.TextOverlay, error) {
	textColor, err := parseColor(r.TextColor, color.NRGBA{A: 255})
	if err != nil {
		return nil, err
	}

	overlay := &postproc.TextOverlay{
		Text:     r.Text,
		Position: postproc.Position(strings.ToLower(strings.TrimSpace(r.TextPosition))),
		Color:    textColor,
		Style:    postproc.OverlayClassic,
	}
	if overlay.Position == "" {
		overlay.Position = postproc.PositionTop
	}
	if strings.EqualFold(strings.TrimSpace(r.TextStyle), string(postproc.OverlayBold)) {
		overlay.Style = postproc.OverlayBold
	}

	// White text usually wants no box; dark text gets a white box unless
	// explicitly disabled.
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	if !r.NoTextBox && textColor != white {
		box := white
		overlay.Box = &box
	}
	return overlay, nil
}

func (c *cardRequest) toCardLayout() (*postproc.CardLayout, error) {
	textColor, err := parseColor(c.TextColor, color.NRGBA{A: 255})
	if err != nil {
		return nil, err
	}
	background, err := parseColor(c.Background, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	if err != nil {
		return nil, err
	}
	return &postproc.CardLayout{
		Text:          c.Text,
		TextColor:     textColor,
		Background:    background,
		ImageFraction: c.ImageFraction,
	}, nil
}

// parseColor accepts "black", "white", or "#RRGGBB".
func parseColor(s string, fallback color.NRGBA) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return fallback, nil
	case s == "black":
		return color.NRGBA{A: 255}, nil
	case s == "white":
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nil
	case strings.HasPrefix(s, "#") && len(s) == 7:
		var r, g, b uint8
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
		}
		return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
	default:
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
}
