// Package protocol defines the framed request/response channel between the
// scanning agents and the backend authority: a closed set of message kinds
// carried as JSON inside length-prefixed typed frames.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"shortsguard/internal/settings"
)

// Kind is a message type. The set is closed and enumerable; anything outside
// it is rejected before payload interpretation.
type Kind string

const (
	KindGetSettings     Kind = "GET_SETTINGS"
	KindUpdateSettings  Kind = "UPDATE_SETTINGS"
	KindWhitelistAdd    Kind = "WHITELIST_ADD"
	KindWhitelistRemove Kind = "WHITELIST_REMOVE"
	KindLogBlock        Kind = "LOG_BLOCK"
	KindGetLogs         Kind = "GET_LOGS"
	KindClearLogs       Kind = "CLEAR_LOGS"
	KindPing            Kind = "PING"
	KindFocusStart      Kind = "FOCUS_START"
	KindFocusCancel     Kind = "FOCUS_CANCEL"
	KindPomodoroStart   Kind = "POMODORO_START"
	KindPomodoroCancel  Kind = "POMODORO_CANCEL"

	// KindSettingsChanged is the one push kind, broadcast by the authority
	// to every registered agent after a settings mutation.
	KindSettingsChanged Kind = "SETTINGS_CHANGED"
)

var kinds = map[Kind]struct{}{
	KindGetSettings: {}, KindUpdateSettings: {},
	KindWhitelistAdd: {}, KindWhitelistRemove: {},
	KindLogBlock: {}, KindGetLogs: {}, KindClearLogs: {},
	KindPing:           {},
	KindFocusStart:     {}, KindFocusCancel: {},
	KindPomodoroStart:  {}, KindPomodoroCancel: {},
	KindSettingsChanged: {},
}

// ErrUnknownKind rejects messages whose type is outside the closed set.
var ErrUnknownKind = errors.New("unknown message kind")

// Message is one request or push: a kind plus a kind-specific payload. A
// message is created per request, sent once, and matched to at most one
// response.
type Message struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage validates the kind and marshals the payload. A nil payload
// produces a bare message.
func NewMessage(kind Kind, payload any) (Message, error) {
	if !ValidKind(kind) {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	m := Message{Type: kind}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("marshal payload: %w", err)
		}
		m.Payload = b
	}
	return m, nil
}

// ValidKind reports whether k belongs to the closed kind set.
func ValidKind(k Kind) bool {
	_, ok := kinds[k]
	return ok
}

// Valid reports whether a decoded message is well-formed: the type must be a
// known kind. Payloads are validated by their handlers.
func (m Message) Valid() bool { return ValidKind(m.Type) }

// Decode unmarshals the payload into dst.
func (m Message) Decode(dst any) error {
	if len(m.Payload) == 0 {
		return errors.New("message has no payload")
	}
	return json.Unmarshal(m.Payload, dst)
}

// Response is the single reply to a request. Data is kind-specific; Error is
// set only when Success is false.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// OK builds a success response carrying data (nil for an empty reply).
func OK(data any) Response {
	r := Response{Success: true}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Fail(fmt.Errorf("marshal response: %w", err))
		}
		r.Data = b
	}
	return r
}

// Fail builds a failure response.
func Fail(err error) Response {
	return Response{Error: err.Error()}
}

// Failf builds a failure response from a format string.
func Failf(format string, args ...any) Response {
	return Response{Error: fmt.Sprintf(format, args...)}
}

// Decode unmarshals the response data into dst.
func (r Response) Decode(dst any) error {
	if !r.Success {
		return fmt.Errorf("request failed: %s", r.Error)
	}
	if len(r.Data) == 0 {
		return errors.New("response has no data")
	}
	return json.Unmarshal(r.Data, dst)
}

// Wire payloads. These are the only shapes that cross the bridge.

// LoginPayload authorizes a connection; the token is an authority-issued JWT.
type LoginPayload struct {
	AgentID string `json:"agent_id"`
	Token   string `json:"token"`
}

// LogBlockPayload reports one blocked element, fire-and-observe.
type LogBlockPayload struct {
	Platform settings.Platform `json:"platform"`
	Action   string            `json:"action"`
	URL      string            `json:"url"`
}

type WhitelistAddPayload struct {
	Platform settings.Platform      `json:"platform"`
	Type     settings.WhitelistType `json:"type"`
	Value    string                 `json:"value"`
}

type WhitelistRemovePayload struct {
	ID string `json:"id"`
}

type GetLogsPayload struct {
	Limit int `json:"limit,omitempty"`
}

// FocusStartPayload starts a focus or pomodoro session. Minutes may be zero
// for an open-ended focus session.
type FocusStartPayload struct {
	Minutes int `json:"minutes,omitempty"`
}
