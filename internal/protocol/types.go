package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Frame types
const (
	TypeHeartbeat = "HEARTBEAT"
	TypeMessage   = "MESH_MESSAGE"
)

var (
	ErrUnknownFrame   = errors.New("unknown frame type")
	ErrMalformedFrame = errors.New("malformed frame")
)

// Location is a GPS fix attached to a message.
type Location struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// Payload is the user content of a Message.
type Payload struct {
	Text           string    `json:"text"`
	Location       *Location `json:"location,omitempty"`
	ManualLocation string    `json:"manualLocation,omitempty"`
}

// Message is an application message. Timestamps are unix milliseconds.
type Message struct {
	ID        string  `json:"id"`
	Type      Kind    `json:"type"`
	Sender    string  `json:"sender"`
	SenderID  string  `json:"senderId"`
	Timestamp int64   `json:"timestamp"`
	Priority  int     `json:"priority"`
	Payload   Payload `json:"payload"`
}

// Heartbeat announces a peer's presence.
type Heartbeat struct {
	ID        string
	Nickname  string
	Timestamp int64
}

// Packet is the wire container shared by both frame types.
type Packet struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Nickname  string          `json:"nickname,omitempty"`
	Timestamp *int64          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Frame is a decoded packet. Exactly one of Heartbeat or Message is meaningful,
// selected by Type.
type Frame struct {
	Type      string
	Heartbeat Heartbeat
	Message   Message
}

func EncodeHeartbeat(h Heartbeat) ([]byte, error) {
	return json.Marshal(Packet{
		Type:      TypeHeartbeat,
		ID:        h.ID,
		Nickname:  h.Nickname,
		Timestamp: &h.Timestamp,
	})
}

func EncodeMessage(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return json.Marshal(Packet{Type: TypeMessage, Payload: body})
}

// Decode parses and validates a wire frame. Message priority is re-derived
// from the message kind rather than trusted from the sender.
func Decode(data []byte) (Frame, error) {
	var p Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch p.Type {
	case TypeHeartbeat:
		if p.ID == "" || p.Timestamp == nil || *p.Timestamp < 0 {
			return Frame{}, fmt.Errorf("%w: heartbeat missing id or timestamp", ErrMalformedFrame)
		}
		return Frame{
			Type:      TypeHeartbeat,
			Heartbeat: Heartbeat{ID: p.ID, Nickname: p.Nickname, Timestamp: *p.Timestamp},
		}, nil
	case TypeMessage:
		var m Message
		if len(p.Payload) == 0 {
			return Frame{}, fmt.Errorf("%w: message frame without payload", ErrMalformedFrame)
		}
		if err := json.Unmarshal(p.Payload, &m); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if err := m.Validate(); err != nil {
			return Frame{}, err
		}
		m.Priority = PriorityOf(m.Type)
		return Frame{Type: TypeMessage, Message: m}, nil
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownFrame, p.Type)
	}
}

// Validate checks the fields every message must carry.
func (m Message) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: message missing id", ErrMalformedFrame)
	case m.SenderID == "":
		return fmt.Errorf("%w: message %s missing senderId", ErrMalformedFrame, m.ID)
	case m.Timestamp <= 0:
		return fmt.Errorf("%w: message %s missing timestamp", ErrMalformedFrame, m.ID)
	case !m.Type.Valid():
		return fmt.Errorf("%w: message %s has unknown type %q", ErrMalformedFrame, m.ID, m.Type)
	case strings.TrimSpace(m.Payload.Text) == "":
		return fmt.Errorf("%w: message %s has empty text", ErrMalformedFrame, m.ID)
	}
	return nil
}
