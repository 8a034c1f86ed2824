package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/gokatarajesh/quiz-widget/internal/logging"
	"github.com/gokatarajesh/quiz-widget/internal/session"
	httperrors "github.com/gokatarajesh/quiz-widget/pkg/http/errors"
	ws "github.com/gokatarajesh/quiz-widget/pkg/http/ws"
)

// HandleWebSocket upgrades to a WebSocket bound to one session. The client
// sends intents; every viewer of the session receives the resulting view.
func (h *SessionHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	view, err := h.manager.View(r.Context(), id)
	if err != nil {
		h.respondSessionError(w, r, id, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := logging.FromContext(r.Context())
		l.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	logger := h.logger.With().Str("session_id", id.String()).Logger()
	wsConn := ws.NewConnection(conn, logger)
	h.hub.Join(id, wsConn)
	go wsConn.WritePump()

	if err := h.sendView(wsConn, id, session.Result{View: view}, ""); err != nil {
		logger.Warn().Err(err).Msg("initial view send failed")
	}

	// The request context ends with the handler, so intents run on their own.
	ctx := context.Background()
	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(ctx, id, wsConn, msg)
	})

	h.hub.Leave(id, wsConn)
}

func (h *SessionHandler) handleMessage(ctx context.Context, id uuid.UUID, conn *ws.Connection, msg ws.Message) error {
	var intent session.Intent
	switch msg.Type {
	case ws.TypeSelect:
		var payload ws.SelectPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.OptionIndex == nil {
			return sendError(conn, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid select payload")
		}
		intent = session.Intent{Kind: session.IntentSelect, OptionIndex: *payload.OptionIndex}
	case ws.TypeAdvance:
		intent = session.Intent{Kind: session.IntentAdvance}
	case ws.TypeRestart:
		intent = session.Intent{Kind: session.IntentRestart}
	case ws.TypeRequestState:
		view, err := h.manager.View(ctx, id)
		if err != nil {
			return sendError(conn, msg.RequestID, httperrors.ErrCodeSessionNotFound, "Session not found")
		}
		return h.sendView(conn, id, session.Result{View: view}, msg.RequestID)
	default:
		return sendError(conn, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}

	res, err := h.manager.Apply(ctx, id, intent)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			return sendError(conn, msg.RequestID, httperrors.ErrCodeSessionNotFound, "Session not found")
		case errors.Is(err, session.ErrSessionBusy):
			return sendError(conn, msg.RequestID, httperrors.ErrCodeSessionBusy, "Session is busy, retry")
		}
		h.logger.Error().Err(err).Str("session_id", id.String()).Str("intent", intent.Kind).Msg("session operation failed")
		return sendError(conn, msg.RequestID, httperrors.ErrCodeInternalError, "Session operation failed")
	}

	// The sender gets its request ID echoed; other viewers get the broadcast.
	if err := h.sendView(conn, id, res, msg.RequestID); err != nil {
		return err
	}
	h.broadcastExcept(id, conn, res)
	return nil
}

func (h *SessionHandler) sendView(conn *ws.Connection, id uuid.UUID, res session.Result, requestID string) error {
	msg, err := ws.NewMessage(ws.TypeViewState, ws.ViewStatePayload{
		SessionID: id.String(),
		Applied:   res.Applied,
		View:      res.View,
	})
	if err != nil {
		return err
	}
	msg.RequestID = requestID
	return conn.Send(msg)
}

func (h *SessionHandler) broadcastExcept(id uuid.UUID, sender *ws.Connection, res session.Result) {
	msg, err := ws.NewMessage(ws.TypeViewState, ws.ViewStatePayload{
		SessionID: id.String(),
		Applied:   res.Applied,
		View:      res.View,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("encode view state failed")
		return
	}
	_ = h.hub.BroadcastExcept(id, sender, msg)
}

func sendError(conn *ws.Connection, requestID, code, message string) error {
	msg, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	msg.RequestID = requestID
	return conn.Send(msg)
}
