package discovery

import (
	"time"

	"github.com/satishydv/meshaid-mvp/internal/core"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

// Status is a peer's derived liveness.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// PeerRecord is the registry's view of one remote peer. LastSeen is the unix
// millisecond timestamp carried by the peer's latest heartbeat.
type PeerRecord struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	LastSeen int64  `json:"lastSeen"`
	Status   Status `json:"status"`
}

// Online reports whether the record is currently considered live.
func (p PeerRecord) Online() bool { return p.Status == StatusOnline }

// Registry tracks remote peers. It is not safe for concurrent use; the owner
// serializes access.
type Registry struct {
	localID   string
	timeout   time.Duration
	monotonic bool

	peers map[string]*PeerRecord
	order []string
}

// NewRegistry creates an empty registry. Heartbeats carrying localID are
// ignored. With monotonic set, heartbeats older than the stored lastSeen are
// discarded instead of moving lastSeen backwards.
func NewRegistry(localID string, timeout time.Duration, monotonic bool) *Registry {
	return &Registry{
		localID:   localID,
		timeout:   timeout,
		monotonic: monotonic,
		peers:     make(map[string]*PeerRecord),
	}
}

// HandleHeartbeat records a heartbeat and reports whether subscribers need to
// hear about it: the peer is new, was offline, or renamed itself.
func (r *Registry) HandleHeartbeat(hb protocol.Heartbeat) bool {
	if hb.ID == "" || hb.ID == r.localID {
		return false
	}
	nick := core.NormalizeNickname(hb.Nickname)

	existing, ok := r.peers[hb.ID]
	if !ok {
		r.peers[hb.ID] = &PeerRecord{
			ID:       hb.ID,
			Nickname: nick,
			LastSeen: hb.Timestamp,
			Status:   StatusOnline,
		}
		r.order = append(r.order, hb.ID)
		return true
	}

	if r.monotonic && r.isStale(existing, hb.Timestamp) {
		return false
	}

	changed := existing.Status != StatusOnline || existing.Nickname != nick
	existing.Nickname = nick
	existing.LastSeen = hb.Timestamp
	existing.Status = StatusOnline
	return changed
}

// isStale catches reordered heartbeats and redelivered duplicates. A duplicate
// of the heartbeat that set lastSeen must not revive a peer the sweep demoted.
func (r *Registry) isStale(rec *PeerRecord, ts int64) bool {
	if ts < rec.LastSeen {
		return true
	}
	return ts == rec.LastSeen && rec.Status == StatusOffline
}

// Sweep demotes every online peer silent for longer than the liveness timeout.
func (r *Registry) Sweep(now time.Time) bool {
	nowMs := now.UnixMilli()
	limit := r.timeout.Milliseconds()
	changed := false
	for _, id := range r.order {
		p := r.peers[id]
		if p.Status == StatusOnline && nowMs-p.LastSeen > limit {
			p.Status = StatusOffline
			changed = true
		}
	}
	return changed
}

// Snapshot returns a copy of every record in first-seen order.
func (r *Registry) Snapshot() []PeerRecord {
	out := make([]PeerRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.peers[id])
	}
	return out
}

// Restore loads persisted records as offline. Ids already known, blank ids and
// the local id are skipped.
func (r *Registry) Restore(records []PeerRecord) {
	for _, rec := range records {
		if rec.ID == "" || rec.ID == r.localID {
			continue
		}
		if _, ok := r.peers[rec.ID]; ok {
			continue
		}
		p := rec
		p.Status = StatusOffline
		if p.Nickname == "" {
			p.Nickname = core.UnknownNickname
		}
		r.peers[p.ID] = &p
		r.order = append(r.order, p.ID)
	}
}

// Get returns the record for id.
func (r *Registry) Get(id string) (PeerRecord, bool) {
	p, ok := r.peers[id]
	if !ok {
		return PeerRecord{}, false
	}
	return *p, true
}

// Len is the number of known peers, online or not.
func (r *Registry) Len() int { return len(r.order) }

// OnlineCount is the number of peers currently online.
func (r *Registry) OnlineCount() int {
	n := 0
	for _, p := range r.peers {
		if p.Status == StatusOnline {
			n++
		}
	}
	return n
}
