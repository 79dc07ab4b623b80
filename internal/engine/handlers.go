package engine

import (
	"log/slog"

	"github.com/satishydv/meshaid-mvp/internal/metrics"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

// handlePacket is the transport receive callback. Bad frames are logged and
// dropped; they never stop the receive path.
func (m *Mesh) handlePacket(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		metrics.IncFrameDropped()
		slog.Warn("Dropping frame", "error", err)
		return
	}

	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		metrics.IncFrameDropped()
		return
	}
	metrics.IncFrameReceived()

	switch frame.Type {
	case protocol.TypeHeartbeat:
		m.handleHeartbeat(frame.Heartbeat)
	case protocol.TypeMessage:
		m.handleMessage(frame.Message)
	}
}

func (m *Mesh) handleHeartbeat(hb protocol.Heartbeat) {
	if hb.ID == m.localID {
		return
	}

	m.peerMu.Lock()
	defer m.peerMu.Unlock()

	m.mu.Lock()
	changed := m.registry.HandleHeartbeat(hb)
	if !changed {
		m.persistRegistryLocked(m.registry.Snapshot())
		m.mu.Unlock()
		return
	}
	snap, handlers := m.peersChangedLocked()
	m.mu.Unlock()

	slog.Debug("Peer changed", "peer", hb.ID, "nickname", hb.Nickname)
	notifyPeers(handlers, snap)
}

// handleMessage delivers a remote message locally. Messages are not forwarded:
// every peer posts its own messages to the whole channel.
func (m *Mesh) handleMessage(msg protocol.Message) {
	if !m.deliver(msg) {
		slog.Debug("Duplicate message ignored", "id", msg.ID)
		return
	}
	metrics.IncMessageReceived()
	slog.Info("Message received", "id", msg.ID, "type", msg.Type, "sender", msg.Sender)
}
