package engine

import (
	"strings"
	"time"

	"github.com/satishydv/meshaid-mvp/internal/core"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

// HistoryCapacity is how many messages a node retains.
const HistoryCapacity = 100

// MessageHandler receives every delivered message, local or remote.
type MessageHandler func(protocol.Message)

// Dispatcher holds the bounded message history and the message subscribers.
// It is not safe for concurrent use; Mesh serializes access.
type Dispatcher struct {
	capacity int
	history  []protocol.Message // newest first
	seen     map[string]struct{}
	handlers []MessageHandler
}

func NewDispatcher(capacity int) *Dispatcher {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &Dispatcher{
		capacity: capacity,
		seen:     make(map[string]struct{}),
	}
}

// NewMessage builds an outbound message. It returns false for blank text or
// an unknown kind, in which case nothing should be sent.
func NewMessage(kind protocol.Kind, text string, loc *protocol.Location, manualLocation, sender, senderID string, now time.Time) (protocol.Message, bool) {
	if strings.TrimSpace(text) == "" || !kind.Valid() {
		return protocol.Message{}, false
	}
	return protocol.Message{
		ID:        core.NewMessageID(),
		Type:      kind,
		Sender:    sender,
		SenderID:  senderID,
		Timestamp: now.UnixMilli(),
		Priority:  protocol.PriorityOf(kind),
		Payload: protocol.Payload{
			Text:           text,
			Location:       loc,
			ManualLocation: strings.TrimSpace(manualLocation),
		},
	}, true
}

// Load replaces the history with msgs (newest first), keeping at most capacity.
func (d *Dispatcher) Load(msgs []protocol.Message) {
	d.history = d.history[:0]
	d.seen = make(map[string]struct{})
	for _, m := range msgs {
		if len(d.history) == d.capacity {
			break
		}
		if _, dup := d.seen[m.ID]; dup {
			continue
		}
		d.seen[m.ID] = struct{}{}
		d.history = append(d.history, m)
	}
}

// Accept prepends msg to the history, evicting the oldest entry when full.
// It returns false for an id already in the history.
func (d *Dispatcher) Accept(msg protocol.Message) bool {
	if _, dup := d.seen[msg.ID]; dup {
		return false
	}
	if len(d.history) == d.capacity {
		oldest := d.history[len(d.history)-1]
		delete(d.seen, oldest.ID)
		d.history = d.history[:len(d.history)-1]
	}
	d.history = append(d.history, protocol.Message{})
	copy(d.history[1:], d.history)
	d.history[0] = msg
	d.seen[msg.ID] = struct{}{}
	return true
}

// Subscribe adds a handler. Handlers run in registration order.
func (d *Dispatcher) Subscribe(h MessageHandler) {
	d.handlers = append(d.handlers, h)
}

// History returns a copy of the retained messages, newest first.
func (d *Dispatcher) History() []protocol.Message {
	out := make([]protocol.Message, len(d.history))
	copy(out, d.history)
	return out
}

func (d *Dispatcher) Len() int { return len(d.history) }

func (d *Dispatcher) subscribers() []MessageHandler {
	return append([]MessageHandler(nil), d.handlers...)
}
