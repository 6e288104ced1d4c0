package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"sparkboard/internal/apperror"
	"sparkboard/internal/export"
	"sparkboard/internal/middleware"
	"sparkboard/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
)

// maxBodyBytes caps PUT bodies; a board is a list of small JSON objects.
const maxBodyBytes = 8 << 20

// Handler serves the session side channel next to the WebSocket protocol.
// Learning: Uses the SessionService interface defined in this package (consumer-driven)
type Handler struct {
	sessions  SessionService
	publicURL string
	logger    *slog.Logger
}

func NewHandler(sessions SessionService, publicURL string, logger *slog.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		publicURL: publicURL,
		logger:    logger.With("component", "api"),
	}
}

// CreateSession handles POST /api/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessions.CreateSession(r.Context())
	if err != nil {
		h.logger.Error("failed to create session", "error", err, "request_id", middleware.GetRequestID(r.Context()))
		writeError(w, err)
		return
	}

	middleware.AddSpanEvent(r.Context(), "session.created", attribute.String("session.id", id))

	writeJSON(w, http.StatusCreated, models.SessionCreated{
		SessionID:  id,
		InviteLink: InviteLink(h.publicURL, id),
	})
}

// GetSession handles GET /api/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	info, err := h.sessions.SessionInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// ReplaceElements handles PUT /api/sessions/{id}/elements. Every participant,
// including any connection of the caller, receives the new list.
func (h *Handler) ReplaceElements(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body models.ReplaceElements
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, apperror.ValidationFailed("elements", fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	if err := h.sessions.ReplaceElements(r.Context(), id, body.Elements); err != nil {
		middleware.AddSpanError(r.Context(), err)
		writeError(w, err)
		return
	}

	h.logger.Info("elements replaced over HTTP", "session_id", id, "elements", len(body.Elements))

	info, err := h.sessions.SessionInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ExportPDF handles GET /api/sessions/{id}/export.pdf.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	info, err := h.sessions.SessionInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, span := middleware.StartSpan(r.Context(), "Export.PDF",
		attribute.String("session.id", id),
		attribute.Int("elements", len(info.Elements)),
	)
	defer span.End()

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, "Sparkboard session "+id, info.Elements); err != nil {
		middleware.AddSpanError(ctx, err)
		h.logger.Error("failed to export session", "session_id", id, "error", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="sparkboard-%s.pdf"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.sessions.SessionCount(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": n})
}

// InviteLink appends ?session=<id> to the public frontend URL.
func InviteLink(publicURL, sessionID string) string {
	u, err := url.Parse(publicURL)
	if err != nil {
		return publicURL + "?session=" + url.QueryEscape(sessionID)
	}
	q := u.Query()
	q.Set("session", sessionID)
	u.RawQuery = q.Encode()
	return u.String()
}
