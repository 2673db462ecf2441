package in

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pixelbooth/internal/modules/booth/dto"
	boothin "pixelbooth/internal/modules/booth/port/in"
	apperrors "pixelbooth/internal/platform/errors"
)

// HTTPHandler serves the operator API of a running kiosk.
type HTTPHandler struct {
	usecase boothin.Usecase
	logger  *slog.Logger
}

func NewHTTPHandler(usecase boothin.Usecase, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{usecase: usecase, logger: logger}
}

// Router returns the admin routes.
func (h *HTTPHandler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.current)
		r.Post("/reset", h.reset)
	})
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.listArchived)
		r.Get("/{id}", h.getArchived)
	})
	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Phase  string `json:"phase"`
}

type artifactResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type sessionResponse struct {
	Version       uint64             `json:"version"`
	Phase         string             `json:"phase"`
	SessionID     string             `json:"sessionId,omitempty"`
	VisitorName   string             `json:"visitorName,omitempty"`
	HasImage      bool               `json:"hasImage"`
	Prompt        string             `json:"prompt,omitempty"`
	GenerationID  string             `json:"generationId,omitempty"`
	Degraded      bool               `json:"degraded"`
	Artifacts     []artifactResponse `json:"artifacts"`
	SelectedIndex int                `json:"selectedIndex"`
	PrintJobID    string             `json:"printJobId,omitempty"`
	PrintDetail   string             `json:"printDetail,omitempty"`
	Error         string             `json:"error,omitempty"`
	IdleSeconds   int                `json:"idleSeconds"`
	Busy          bool               `json:"busy"`
	Progress      float64            `json:"progress"`
}

type archivedResponse struct {
	SessionID    string             `json:"sessionId"`
	VisitorName  string             `json:"visitorName,omitempty"`
	VisitorEmail string             `json:"visitorEmail,omitempty"`
	StartedAt    string             `json:"startedAt,omitempty"`
	EndedAt      string             `json:"endedAt"`
	FinalPhase   string             `json:"finalPhase"`
	Prompt       string             `json:"prompt,omitempty"`
	StylePrompt  string             `json:"stylePrompt,omitempty"`
	GenerationID string             `json:"generationId,omitempty"`
	Degraded     bool               `json:"degraded"`
	ImageCount   int                `json:"imageCount"`
	Selected     int                `json:"selected"`
	PrintJobID   string             `json:"printJobId,omitempty"`
	Artifacts    []artifactResponse `json:"artifacts,omitempty"`
}

func (h *HTTPHandler) health(w http.ResponseWriter, r *http.Request) {
	snap, err := h.usecase.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Phase: snap.Phase})
}

func (h *HTTPHandler) current(w http.ResponseWriter, r *http.Request) {
	snap, err := h.usecase.Snapshot(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(snap))
}

func (h *HTTPHandler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.usecase.Reset(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	snap, err := h.usecase.Snapshot(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("session reset by operator")
	writeJSON(w, http.StatusOK, toSessionResponse(snap))
}

func (h *HTTPHandler) listArchived(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	sessions, err := h.usecase.ListArchived(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]archivedResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toArchivedResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out, "count": len(out)})
}

func (h *HTTPHandler) getArchived(w http.ResponseWriter, r *http.Request) {
	session, err := h.usecase.GetArchived(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toArchivedResponse(session))
}

func (h *HTTPHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("admin request failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func toSessionResponse(s dto.SnapshotOutput) sessionResponse {
	return sessionResponse{
		Version:       s.Version,
		Phase:         s.Phase,
		SessionID:     s.SessionID,
		VisitorName:   s.VisitorName,
		HasImage:      s.HasImage,
		Prompt:        s.Prompt,
		GenerationID:  s.GenerationID,
		Degraded:      s.Degraded,
		Artifacts:     toArtifactResponses(s.Artifacts),
		SelectedIndex: s.SelectedIndex,
		PrintJobID:    s.PrintJobID,
		PrintDetail:   s.PrintDetail,
		Error:         s.Error,
		IdleSeconds:   s.IdleSeconds,
		Busy:          s.Busy,
		Progress:      s.Progress,
	}
}

func toArchivedResponse(s dto.ArchivedSessionOutput) archivedResponse {
	out := archivedResponse{
		SessionID:    s.SessionID,
		VisitorName:  s.VisitorName,
		VisitorEmail: s.VisitorEmail,
		EndedAt:      s.EndedAt.UTC().Format(time.RFC3339),
		FinalPhase:   s.FinalPhase,
		Prompt:       s.Prompt,
		StylePrompt:  s.StylePrompt,
		GenerationID: s.GenerationID,
		Degraded:     s.Degraded,
		ImageCount:   s.ImageCount,
		Selected:     s.Selected,
		PrintJobID:   s.PrintJobID,
	}
	if !s.StartedAt.IsZero() {
		out.StartedAt = s.StartedAt.UTC().Format(time.RFC3339)
	}
	if len(s.Artifacts) > 0 {
		out.Artifacts = toArtifactResponses(s.Artifacts)
	}
	return out
}

func toArtifactResponses(in []dto.ArtifactOutput) []artifactResponse {
	out := make([]artifactResponse, 0, len(in))
	for _, a := range in {
		out = append(out, artifactResponse{ID: a.ID, URL: a.URL, Width: a.Width, Height: a.Height})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
