package ws

import "encoding/json"

// MessageType constants for the quiz WebSocket protocol.
const (
	// Client -> Server
	TypeSelect       = "select"
	TypeAdvance      = "advance"
	TypeRestart      = "restart"
	TypeRequestState = "request_state"

	// Server -> Client
	TypeViewState = "view_state"
	TypeError     = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// SelectPayload carries the chosen option for a select message.
type SelectPayload struct {
	OptionIndex *int `json:"option_index"`
}

// ViewStatePayload is pushed to every viewer after an intent.
type ViewStatePayload struct {
	SessionID string `json:"session_id"`
	Applied   bool   `json:"applied"`
	View      any    `json:"view"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload any) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = data
	return msg, nil
}
