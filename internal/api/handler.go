// Package api provides the HTTP handlers for the onboarding API.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/serviceseeking/onboard/internal/config"
	"github.com/serviceseeking/onboard/internal/domain"
	"github.com/serviceseeking/onboard/internal/flow"
	"github.com/serviceseeking/onboard/internal/store"
)

const (
	maxUploadBytes = 5 << 20
	maxLogLimit    = 200
)

var (
	errInvalidImage = errors.New("expected a jpeg, png or webp data URL")
	errTooLarge     = errors.New("image exceeds the 5MB limit")
)

// contextWithTimeout bounds persistence writes so a slow disk never holds a
// session lock.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// Handler serves the session API.
type Handler struct {
	orch     *flow.Orchestrator
	sessions *flow.Sessions
	repo     store.Repository
	cfg      *config.Config
	limiter  *RateLimiter
	logger   *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(orch *flow.Orchestrator, sessions *flow.Sessions, repo store.Repository, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		orch:     orch,
		sessions: sessions,
		repo:     repo,
		cfg:      cfg,
		limiter:  NewRateLimiter(chatRateLimit, chatRateWindow),
		logger:   logger,
	}
}

// RegisterRoutes registers the API routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/session", h.CreateSession)
	r.Post("/api/chat", h.PostMessage)
	r.Get("/api/session/{id}", h.GetSession)
	r.Get("/api/session/{id}/result", h.GetResult)
	r.Post("/api/upload", h.Upload)
	r.Get("/api/logs", h.ListLogs)
	r.Get("/api/logs/{id}", h.GetLog)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

type turnResponse struct {
	SessionID    string              `json:"session_id"`
	Response     string              `json:"response"`
	QuickReplies []domain.QuickReply `json:"quick_replies,omitempty"`
	CurrentStep  domain.Step         `json:"current_step"`
	IsTerminal   bool                `json:"is_terminal"`
}

// CreateSession starts a new onboarding session and runs the first turn.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, release := h.sessions.Create()
	defer release()

	reply := h.orch.Start(r.Context(), sess)
	h.persistTurn(sess, "", reply)

	JSON(w, http.StatusCreated, turnResponse{
		SessionID:    sess.ID,
		Response:     reply.Text,
		QuickReplies: reply.QuickReplies,
		CurrentStep:  reply.Step,
		IsTerminal:   reply.Terminal,
	})
}

// PostMessage advances a session by one turn.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "session_id and message are required")
		return
	}

	sess, release, err := h.sessions.Acquire(req.SessionID)
	if err != nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	defer release()

	if !h.limiter.Allow(sess.ID) {
		Error(w, http.StatusTooManyRequests, "too many messages, please slow down")
		return
	}

	reply := h.orch.Advance(r.Context(), sess, req.Message)
	h.persistTurn(sess, req.Message, reply)

	JSON(w, http.StatusOK, turnResponse{
		SessionID:    sess.ID,
		Response:     reply.Text,
		QuickReplies: reply.QuickReplies,
		CurrentStep:  reply.Step,
		IsTerminal:   reply.Terminal,
	})
}

// GetSession returns a read-only projection of the session state. The raw
// message transcript is excluded by the session's JSON shape.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, release, err := h.sessions.Acquire(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	defer release()

	JSON(w, http.StatusOK, sess)
}

// GetResult returns the finalized record, or a pending marker until the
// terminal step is reached.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	sess, release, err := h.sessions.Acquire(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	defer release()

	if sess.Result == nil {
		JSON(w, http.StatusOK, map[string]string{
			"status":       "pending",
			"current_step": string(sess.CurrentStep),
		})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status": "complete",
		"result": sess.Result,
	})
}

// Upload accepts an owner-provided logo or photo as a data URL and attaches
// it to the session's profile draft.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Kind      string `json:"kind"` // "logo" | "photo"
		DataURL   string `json:"data_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind != "logo" && req.Kind != "photo" {
		Error(w, http.StatusBadRequest, "kind must be logo or photo")
		return
	}
	if err := validateImageDataURL(req.DataURL); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, release, err := h.sessions.Acquire(req.SessionID)
	if err != nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	defer release()

	if req.Kind == "logo" {
		sess.Profile.Logo = req.DataURL
	} else {
		if len(sess.Profile.Photos) >= h.cfg.Heuristics.MaxPhotos {
			Error(w, http.StatusBadRequest, "photo limit reached")
			return
		}
		sess.Profile.Photos = append(sess.Profile.Photos, req.DataURL)
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"logo":   sess.Profile.Logo != "",
		"photos": len(sess.Profile.Photos),
	})
}

// ListLogs returns the recent session log index.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusServiceUnavailable, "logging not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxLogLimit {
			limit = n
		}
	}

	summaries, err := h.repo.ListSessionLogs(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list session logs", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"sessions": summaries})
}

// GetLog returns one session's turn log.
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusServiceUnavailable, "logging not configured")
		return
	}
	id := chi.URLParam(r, "id")
	logs, err := h.repo.GetSessionLog(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load session log", "session_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load log")
		return
	}
	if len(logs) == 0 {
		Error(w, http.StatusNotFound, "no logs for session")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"turns": logs})
}

// persistTurn writes the turn log and session snapshot. Persistence is
// observability only; failures are logged and never fail the turn.
func (h *Handler) persistTurn(sess *domain.Session, userText string, reply flow.Reply) {
	if h.repo == nil {
		return
	}
	ctx, cancel := contextWithTimeout()
	defer cancel()

	traceJSON := ""
	if len(sess.Trace) > 0 {
		if data, err := json.Marshal(sess.Trace); err == nil {
			traceJSON = string(data)
		}
	}
	if err := h.repo.LogTurn(ctx, &store.TurnLog{
		SessionID:    sess.ID,
		Step:         string(reply.Step),
		UserText:     userText,
		ResponseText: reply.Text,
		TraceJSON:    traceJSON,
		CreatedAt:    time.Now(),
	}); err != nil {
		h.logger.Warn("failed to log turn", "session_id", sess.ID, "error", err)
	}

	if data, err := json.Marshal(sess); err == nil {
		if err := h.repo.SaveSnapshot(ctx, sess.ID, string(data)); err != nil {
			h.logger.Warn("failed to save snapshot", "session_id", sess.ID, "error", err)
		}
	}
}

func validateImageDataURL(dataURL string) error {
	const prefix = "data:image/"
	if !strings.HasPrefix(dataURL, prefix) {
		return errInvalidImage
	}
	rest := dataURL[len(prefix):]
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return errInvalidImage
	}
	switch rest[:semi] {
	case "jpeg", "jpg", "png", "webp":
	default:
		return errInvalidImage
	}
	payload := rest[semi+len(";base64,"):]
	if base64.StdEncoding.DecodedLen(len(payload)) > maxUploadBytes {
		return errTooLarge
	}
	return nil
}
