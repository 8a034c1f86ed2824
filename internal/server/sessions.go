package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-widget/internal/logging"
	"github.com/gokatarajesh/quiz-widget/internal/quiz"
	"github.com/gokatarajesh/quiz-widget/internal/session"
	httperrors "github.com/gokatarajesh/quiz-widget/pkg/http/errors"
	ws "github.com/gokatarajesh/quiz-widget/pkg/http/ws"
)

// SessionHandler exposes quiz sessions over REST and WebSocket.
type SessionHandler struct {
	manager  *session.Manager
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewSessionHandler constructs the session API. allowedOrigins limits
// which browser origins may open the session WebSocket.
func NewSessionHandler(manager *session.Manager, hub *ws.Hub, allowedOrigins []string, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		manager:  manager,
		hub:      hub,
		upgrader: newUpgrader(allowedOrigins),
		logger:   logger.With().Str("component", "session_http").Logger(),
	}
}

// Register mounts the session routes on mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/bank", h.HandleBank)
	mux.HandleFunc("POST /v1/sessions", h.HandleCreate)
	mux.HandleFunc("GET /v1/sessions/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.HandleDelete)
	mux.HandleFunc("POST /v1/sessions/{id}/select", h.HandleSelect)
	mux.HandleFunc("POST /v1/sessions/{id}/advance", h.handleIntent(session.IntentAdvance))
	mux.HandleFunc("POST /v1/sessions/{id}/restart", h.handleIntent(session.IntentRestart))
	mux.HandleFunc("GET /ws/sessions/{id}", h.HandleWebSocket)
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	View      quiz.View `json:"view"`
}

type intentResponse struct {
	SessionID string    `json:"session_id"`
	Applied   bool      `json:"applied"`
	View      quiz.View `json:"view"`
}

type selectRequest struct {
	OptionIndex *int `json:"option_index"`
}

type bankResponse struct {
	Total     int      `json:"total"`
	Questions []string `json:"questions"`
}

// HandleBank lists the question texts without revealing answers.
func (h *SessionHandler) HandleBank(w http.ResponseWriter, r *http.Request) {
	bank := h.manager.Bank()
	writeJSON(w, http.StatusOK, bankResponse{Total: bank.Len(), Questions: bank.Prompts()})
}

func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, view, err := h.manager.Create(r.Context())
	if err != nil {
		l := logging.FromContext(r.Context())
		l.Error().Err(err).Msg("create session failed")
		httperrors.RespondInternalError(w, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id.String(), View: view})
}

func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.manager.View(r.Context(), id)
	if err != nil {
		h.respondSessionError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id.String(), View: view})
}

func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.respondSessionError(w, r, id, err)
		return
	}
	h.hub.CloseSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid request body")
		return
	}
	if req.OptionIndex == nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "option_index is required", "option_index")
		return
	}

	h.apply(w, r, id, session.Intent{Kind: session.IntentSelect, OptionIndex: *req.OptionIndex})
}

func (h *SessionHandler) handleIntent(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		h.apply(w, r, id, session.Intent{Kind: kind})
	}
}

func (h *SessionHandler) apply(w http.ResponseWriter, r *http.Request, id uuid.UUID, intent session.Intent) {
	res, err := h.manager.Apply(r.Context(), id, intent)
	if err != nil {
		h.respondSessionError(w, r, id, err)
		return
	}
	h.publish(id, res)
	writeJSON(w, http.StatusOK, intentResponse{SessionID: id.String(), Applied: res.Applied, View: res.View})
}

// publish pushes the new view to every WebSocket viewer of the session.
func (h *SessionHandler) publish(id uuid.UUID, res session.Result) {
	if h.hub.Viewers(id) == 0 {
		return
	}
	msg, err := ws.NewMessage(ws.TypeViewState, ws.ViewStatePayload{
		SessionID: id.String(),
		Applied:   res.Applied,
		View:      res.View,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("encode view state failed")
		return
	}
	_ = h.hub.Broadcast(id, msg)
}

func (h *SessionHandler) respondSessionError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
	case errors.Is(err, session.ErrSessionBusy):
		httperrors.RespondConflict(w, httperrors.ErrCodeSessionBusy, "Session is busy, retry")
	default:
		l := logging.FromContext(r.Context())
		l.Error().Err(err).Str("session_id", id.String()).Msg("session operation failed")
		httperrors.RespondInternalError(w, "Session operation failed")
	}
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSessionID, "Invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
