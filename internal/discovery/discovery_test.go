package discovery

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/satishydv/meshaid-mvp/internal/core"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

func at(ms int64) time.Time { return time.UnixMilli(ms) }

func newTestRegistry() *Registry {
	return NewRegistry("peer-self", DefaultLivenessTimeout, true)
}

func TestSelfHeartbeatIgnored(t *testing.T) {
	r := newTestRegistry()
	if r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-self", Nickname: "Me", Timestamp: 1}) {
		t.Error("Self heartbeat reported a change")
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d peers", r.Len())
	}
}

func TestGhostScenario(t *testing.T) {
	r := newTestRegistry()

	if !r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "Ghost-1", Timestamp: 0}) {
		t.Fatal("First heartbeat should report a change")
	}
	snap := r.Snapshot()
	if len(snap) != 1 || !snap[0].Online() || snap[0].Nickname != "Ghost-1" {
		t.Fatalf("Expected one online Ghost-1, got %+v", snap)
	}

	if r.Sweep(at(15000)) {
		t.Error("Peer should still be online at exactly the timeout")
	}
	if !r.Sweep(at(20000)) {
		t.Fatal("Sweep at t=20000 should demote the peer")
	}
	if p, _ := r.Get("peer-a"); p.Online() {
		t.Fatal("Expected peer-a offline after sweep")
	}
	if r.Sweep(at(20001)) {
		t.Error("Second sweep should report no change")
	}

	changes := 0
	if r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "Ghost-1", Timestamp: 21000}) {
		changes++
	}
	if r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "Ghost-1", Timestamp: 26000}) {
		changes++
	}
	if changes != 1 {
		t.Errorf("Expected exactly one change for the offline->online transition, got %d", changes)
	}
	if p, _ := r.Get("peer-a"); !p.Online() || p.LastSeen != 26000 {
		t.Errorf("Unexpected record %+v", p)
	}
}

func TestNicknameChangeIsAChange(t *testing.T) {
	r := newTestRegistry()
	r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "Beacon", Timestamp: 10})
	if !r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "Sentry", Timestamp: 20}) {
		t.Error("Rename should report a change")
	}
	if r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "Sentry", Timestamp: 30}) {
		t.Error("Plain refresh should not report a change")
	}
}

func TestBlankNicknameBecomesUnknown(t *testing.T) {
	r := newTestRegistry()
	r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Timestamp: 10})
	if p, _ := r.Get("peer-a"); p.Nickname != core.UnknownNickname {
		t.Errorf("Expected %q, got %q", core.UnknownNickname, p.Nickname)
	}
}

func TestMonotonicLastSeen(t *testing.T) {
	r := newTestRegistry()
	r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "A", Timestamp: 5000})
	if r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "B", Timestamp: 4000}) {
		t.Error("Out-of-order heartbeat should be ignored")
	}
	p, _ := r.Get("peer-a")
	if p.LastSeen != 5000 || p.Nickname != "A" {
		t.Errorf("Out-of-order heartbeat regressed the record: %+v", p)
	}

	r.Sweep(at(30000))
	if r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "A", Timestamp: 5000}) {
		t.Error("Duplicate heartbeat should not revive a swept peer")
	}
	if p, _ := r.Get("peer-a"); p.Online() {
		t.Error("Expected peer to stay offline")
	}
}

func TestNonMonotonicOverwrites(t *testing.T) {
	r := NewRegistry("peer-self", DefaultLivenessTimeout, false)
	r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Timestamp: 5000})
	r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Timestamp: 4000})
	if p, _ := r.Get("peer-a"); p.LastSeen != 4000 {
		t.Errorf("Expected lastSeen overwritten to 4000, got %d", p.LastSeen)
	}
}

func TestRestoreForcesOffline(t *testing.T) {
	r := newTestRegistry()
	r.Restore([]PeerRecord{
		{ID: "peer-a", Nickname: "A", LastSeen: 100, Status: StatusOnline},
		{ID: "peer-b", Nickname: "B", LastSeen: 200, Status: StatusOffline},
		{ID: "peer-self", Nickname: "Me", LastSeen: 300, Status: StatusOnline},
		{ID: "", Nickname: "blank"},
	})
	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Expected 2 restored peers, got %d", len(snap))
	}
	for _, p := range snap {
		if p.Online() {
			t.Errorf("Restored peer %s should be offline", p.ID)
		}
	}
	if snap[0].ID != "peer-a" || snap[1].ID != "peer-b" {
		t.Errorf("Restore should keep stored order, got %s, %s", snap[0].ID, snap[1].ID)
	}
	if r.OnlineCount() != 0 {
		t.Errorf("Expected 0 online, got %d", r.OnlineCount())
	}
	for _, want := range []PeerRecord{{ID: "peer-a", Nickname: "A", LastSeen: 100}, {ID: "peer-b", Nickname: "B", LastSeen: 200}} {
		got, ok := r.Get(want.ID)
		if !ok || got.Nickname != want.Nickname || got.LastSeen != want.LastSeen {
			t.Errorf("Restored record %s should keep its own fields, got %+v", want.ID, got)
		}
	}

	if !r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "A", Timestamp: 500}) {
		t.Error("Heartbeat from restored peer should report a change")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := newTestRegistry()
	r.HandleHeartbeat(protocol.Heartbeat{ID: "peer-a", Nickname: "A", Timestamp: 1})
	snap := r.Snapshot()
	snap[0].Nickname = "mutated"
	if p, _ := r.Get("peer-a"); p.Nickname != "A" {
		t.Error("Snapshot shares memory with the registry")
	}
}

func TestSchedulerBeatsImmediatelyAndSweeps(t *testing.T) {
	var beats, sweeps atomic.Int32
	s := NewScheduler(20*time.Millisecond, 30*time.Millisecond,
		func() { beats.Add(1) },
		func() { sweeps.Add(1) },
	)

	s.Start(context.Background())
	if beats.Load() != 1 {
		t.Fatalf("Expected one immediate heartbeat, got %d", beats.Load())
	}
	s.Start(context.Background())
	if beats.Load() != 1 {
		t.Error("Second Start should be a no-op")
	}

	time.Sleep(150 * time.Millisecond)
	s.Stop()

	if beats.Load() < 3 {
		t.Errorf("Expected periodic heartbeats, got %d", beats.Load())
	}
	if sweeps.Load() < 2 {
		t.Errorf("Expected periodic sweeps, got %d", sweeps.Load())
	}
	if s.Running() {
		t.Error("Scheduler still running after Stop")
	}

	stopped := beats.Load()
	time.Sleep(60 * time.Millisecond)
	if beats.Load() != stopped {
		t.Error("Heartbeats continued after Stop")
	}
	s.Stop()
}
