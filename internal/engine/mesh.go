package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/satishydv/meshaid-mvp/internal/core"
	"github.com/satishydv/meshaid-mvp/internal/discovery"
	"github.com/satishydv/meshaid-mvp/internal/metrics"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
	"github.com/satishydv/meshaid-mvp/internal/store"
	"github.com/satishydv/meshaid-mvp/internal/transport"
)

// PeerHandler receives the full peer list after every registry change.
type PeerHandler func([]discovery.PeerRecord)

type Options struct {
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	LivenessTimeout   time.Duration
	MonotonicLastSeen bool
	HistoryCapacity   int
	// Seed is the history used when the store holds none.
	Seed []protocol.Message
	// PeerID fixes the local id; empty generates one.
	PeerID string
	Now    func() time.Time
}

func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: discovery.DefaultHeartbeatInterval,
		SweepInterval:     discovery.DefaultSweepInterval,
		LivenessTimeout:   discovery.DefaultLivenessTimeout,
		MonotonicLastSeen: true,
		HistoryCapacity:   HistoryCapacity,
	}
}

// Stats summarizes the mesh for status displays.
type Stats struct {
	PeerID      string `json:"peer_id"`
	Nickname    string `json:"nickname"`
	PeersOnline int    `json:"peers_online"`
	PeersKnown  int    `json:"peers_known"`
	Messages    int    `json:"messages"`
	ActiveSOS   int    `json:"active_sos"`
}

// Mesh is the peer-presence and message-dissemination service of one process.
// Registry and dispatcher state is guarded by mu; subscribers are called
// after mu is released. peerMu is taken before mu and held through peer
// notification so subscribers see registry changes in order.
type Mesh struct {
	transport transport.Transport
	snaps     *store.Snapshots
	localID   string
	now       func() time.Time
	scheduler *discovery.Scheduler

	peerMu sync.Mutex

	mu           sync.Mutex
	nick         string
	stopped      bool
	registry     *discovery.Registry
	dispatcher   *Dispatcher
	peerHandlers []PeerHandler
}

// New restores persisted peers and history and attaches to tr. Frames are
// processed from this point on; heartbeats start with Init.
func New(tr transport.Transport, snaps *store.Snapshots, opts Options) *Mesh {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PeerID == "" {
		opts.PeerID = core.NewPeerID()
	}
	defaults := DefaultOptions()
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaults.SweepInterval
	}
	if opts.LivenessTimeout <= 0 {
		opts.LivenessTimeout = defaults.LivenessTimeout
	}

	m := &Mesh{
		transport:  tr,
		snaps:      snaps,
		localID:    opts.PeerID,
		now:        opts.Now,
		nick:       snaps.LoadNickname(),
		registry:   discovery.NewRegistry(opts.PeerID, opts.LivenessTimeout, opts.MonotonicLastSeen),
		dispatcher: NewDispatcher(opts.HistoryCapacity),
	}
	m.registry.Restore(snaps.LoadRegistry())
	m.dispatcher.Load(snaps.LoadHistory(opts.Seed))
	metrics.SetPeers(m.registry.OnlineCount(), m.registry.Len())

	m.scheduler = discovery.NewScheduler(opts.HeartbeatInterval, opts.SweepInterval, m.beat, m.sweep)
	tr.OnReceive(m.handlePacket)

	slog.Info("Mesh ready", "peerID", m.localID, "peers", m.registry.Len(), "history", m.dispatcher.Len())
	return m
}

// Init sets the nickname and announces this peer. Calling it again updates the
// nickname and re-announces immediately. A blank nickname keeps the stored
// one, or picks a random call sign.
func (m *Mesh) Init(ctx context.Context, nickname string) {
	m.mu.Lock()
	if nick := strings.TrimSpace(nickname); nick != "" {
		m.nick = nick
	} else if m.nick == "" {
		m.nick = core.RandomNickname(nil)
	}
	nick := m.nick
	m.stopped = false
	m.mu.Unlock()

	if err := m.snaps.SaveNickname(nick); err != nil {
		slog.Warn("Failed to persist nickname", "error", err)
	}

	if m.scheduler.Running() {
		m.beat()
		return
	}
	m.scheduler.Start(ctx)
}

// Stop halts heartbeats and sweeps. Frames delivered afterwards are ignored.
func (m *Mesh) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.scheduler.Stop()
}

func (m *Mesh) LocalPeerID() string { return m.localID }

func (m *Mesh) Nickname() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nick
}

// Send posts a new message to the other peers and then delivers it locally.
// Blank text and unknown kinds are ignored and reported with false.
func (m *Mesh) Send(kind protocol.Kind, text string, loc *protocol.Location, manualLocation string) (protocol.Message, bool) {
	msg, ok := NewMessage(kind, text, loc, manualLocation, m.Nickname(), m.localID, m.now())
	if !ok {
		return protocol.Message{}, false
	}

	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		slog.Error("Failed to encode message", "error", err)
		return protocol.Message{}, false
	}
	if err := m.transport.Post(data); err != nil {
		slog.Warn("Failed to post message", "id", msg.ID, "error", err)
	}
	metrics.IncMessageSent()

	m.deliver(msg)
	return msg, true
}

// SubscribeMessages registers a handler for every delivered message.
func (m *Mesh) SubscribeMessages(h MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatcher.Subscribe(h)
}

// SubscribePeers registers h and calls it right away with the current list.
func (m *Mesh) SubscribePeers(h PeerHandler) {
	m.peerMu.Lock()
	defer m.peerMu.Unlock()

	m.mu.Lock()
	m.peerHandlers = append(m.peerHandlers, h)
	snap := m.registry.Snapshot()
	m.mu.Unlock()
	h(snap)
}

func (m *Mesh) Peers() []discovery.PeerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Snapshot()
}

// History returns retained messages, newest first.
func (m *Mesh) History() []protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dispatcher.History()
}

func (m *Mesh) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.dispatcher.History()
	return Stats{
		PeerID:      m.localID,
		Nickname:    m.nick,
		PeersOnline: m.registry.OnlineCount(),
		PeersKnown:  m.registry.Len(),
		Messages:    len(history),
		ActiveSOS:   protocol.CountKind(history, protocol.KindSOS),
	}
}

func (m *Mesh) beat() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	hb := protocol.Heartbeat{ID: m.localID, Nickname: m.nick, Timestamp: m.now().UnixMilli()}
	m.mu.Unlock()

	data, err := protocol.EncodeHeartbeat(hb)
	if err != nil {
		slog.Error("Failed to encode heartbeat", "error", err)
		return
	}
	if err := m.transport.Post(data); err != nil {
		slog.Warn("Failed to post heartbeat", "error", err)
		return
	}
	metrics.IncHeartbeatSent()
}

func (m *Mesh) sweep() {
	m.peerMu.Lock()
	defer m.peerMu.Unlock()

	m.mu.Lock()
	if m.stopped || !m.registry.Sweep(m.now()) {
		m.mu.Unlock()
		return
	}
	snap, handlers := m.peersChangedLocked()
	m.mu.Unlock()

	slog.Info("Sweep marked peers offline", "online", countOnline(snap), "known", len(snap))
	notifyPeers(handlers, snap)
}

// deliver records msg in the history and hands it to subscribers. Duplicates
// are dropped.
func (m *Mesh) deliver(msg protocol.Message) bool {
	m.mu.Lock()
	if !m.dispatcher.Accept(msg) {
		m.mu.Unlock()
		return false
	}
	if err := m.snaps.SaveHistory(m.dispatcher.History()); err != nil {
		slog.Warn("Failed to persist history", "error", err)
	}
	handlers := m.dispatcher.subscribers()
	m.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return true
}

// peersChangedLocked persists the registry and returns what subscribers need.
// Caller holds mu.
func (m *Mesh) peersChangedLocked() ([]discovery.PeerRecord, []PeerHandler) {
	snap := m.registry.Snapshot()
	m.persistRegistryLocked(snap)
	return snap, append([]PeerHandler(nil), m.peerHandlers...)
}

func (m *Mesh) persistRegistryLocked(snap []discovery.PeerRecord) {
	metrics.SetPeers(m.registry.OnlineCount(), len(snap))
	if err := m.snaps.SaveRegistry(snap); err != nil {
		slog.Warn("Failed to persist peer registry", "error", err)
	}
}

func notifyPeers(handlers []PeerHandler, snap []discovery.PeerRecord) {
	for _, h := range handlers {
		h(append([]discovery.PeerRecord(nil), snap...))
	}
}

func countOnline(records []discovery.PeerRecord) int {
	n := 0
	for _, r := range records {
		if r.Online() {
			n++
		}
	}
	return n
}
