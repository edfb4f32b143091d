// Package protocol defines the WebSocket wire format between the session
// coordinator and its participants. Every frame is a Message envelope whose
// Data payload is one of the typed structs below, selected by Type.
package protocol

import (
	"encoding/json"
	"time"
)

// Message is the envelope for every frame in either direction.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// MessageType discriminates the payload carried by a Message.
type MessageType string

// Client to server message types. Connecting is the WebSocket upgrade itself
// (with an optional ?istest= query); disconnecting is the socket closing.
const (
	MessageTypeSubmitMove   MessageType = "submit_move"
	MessageTypeAdvanceRound MessageType = "advance_round"
)

// Server to client message types.
const (
	MessageTypeConnected        MessageType = "connected"
	MessageTypeSessionWaiting   MessageType = "session_waiting"
	MessageTypeRoundBegin       MessageType = "round_begin"
	MessageTypeOpponentDeciding MessageType = "opponent_deciding"
	MessageTypeWaitingOpponent  MessageType = "waiting_opponent"
	MessageTypeRoundComplete    MessageType = "round_complete"
	MessageTypeGameOver         MessageType = "game_over"
	MessageTypeError            MessageType = "error"
)

// NewMessage wraps data in an envelope with the current timestamp.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Client to server payloads.

// SubmitMoveData carries one participant's move for the current round.
type SubmitMoveData struct {
	Move      string `json:"move"`
	LatencyMs int64  `json:"latency_ms"`
}

// AdvanceRoundData signals readiness for the next round. It carries no
// fields; the sender is identified by its connection.
type AdvanceRoundData struct{}

// Server to client payloads.

// ConnectedData confirms the connection and hands out the opaque
// connection-scoped participant id.
type ConnectedData struct {
	ParticipantID string `json:"participant_id"`
}

// SessionWaitingData tells the first participant it is parked in a new
// session until an opponent arrives.
type SessionWaitingData struct {
	SessionID string `json:"session_id"`
}

// RoundWaitingData is sent while the opposite side still owes a move or a
// continuation acknowledgment.
type RoundWaitingData struct {
	Status string `json:"status"`
}

// GameOverData terminates a participant's session, either normally after the
// final round or because the opponent disconnected.
type GameOverData struct {
	Reason string `json:"reason,omitempty"`
}

// ErrorData reports a rejected event.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParticipantState is the public view of one session slot.
type ParticipantState struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PointsTotal int    `json:"points_total"`
}

// RoundView is the public view of the round currently in progress. Slot
// indexes line up with SessionSnapshot.Participants. Moves and outcomes are
// empty strings until the round resolves; the server never reveals a pending
// move to the opponent.
type RoundView struct {
	Index        int       `json:"index"`
	Phase        string    `json:"phase"`
	Moves        [2]string `json:"moves"`
	LatenciesMs  [2]int64  `json:"latencies_ms"`
	Outcomes     [2]string `json:"outcomes"`
	Points       [2]int    `json:"points"`
	TotalsBefore [2]int    `json:"totals_before"`
}

// SessionSnapshot is the full session state sent on round_begin and
// round_complete. Both participants receive an identical snapshot; a client
// finds its own slot by participant id. Completed round history is
// deliberately server-side only.
type SessionSnapshot struct {
	SessionID         string              `json:"session_id"`
	IsTest            bool                `json:"istest"`
	RoundCount        int                 `json:"round_count"`
	Participants      [2]ParticipantState `json:"participants"`
	CurrentRoundIndex int                 `json:"current_round_index"`
	CurrentRound      *RoundView          `json:"current_round,omitempty"`
}
