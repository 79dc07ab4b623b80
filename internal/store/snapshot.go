package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/satishydv/meshaid-mvp/internal/discovery"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

// Storage keys.
const (
	KeyRegistry = "meshaid_peer_registry_v2"
	KeyHistory  = "meshaid_msg_history"
	KeyNickname = "meshaid_nick"
)

// Snapshots persists registry and history snapshots as JSON under fixed keys.
// Loads never fail: anything missing or unreadable comes back empty.
type Snapshots struct {
	kv Store
}

func NewSnapshots(kv Store) *Snapshots {
	return &Snapshots{kv: kv}
}

func (s *Snapshots) SaveRegistry(records []discovery.PeerRecord) error {
	if records == nil {
		records = []discovery.PeerRecord{}
	}
	return s.put(KeyRegistry, records)
}

// LoadRegistry returns the stored records as written, statuses included; the
// registry's Restore is what forces them offline.
func (s *Snapshots) LoadRegistry() []discovery.PeerRecord {
	var records []discovery.PeerRecord
	if !s.get(KeyRegistry, &records) {
		return nil
	}
	return records
}

// SaveHistory stores messages newest first.
func (s *Snapshots) SaveHistory(msgs []protocol.Message) error {
	if msgs == nil {
		msgs = []protocol.Message{}
	}
	return s.put(KeyHistory, msgs)
}

// LoadHistory returns the stored history, or seed when nothing usable is stored.
func (s *Snapshots) LoadHistory(seed []protocol.Message) []protocol.Message {
	var msgs []protocol.Message
	if !s.get(KeyHistory, &msgs) {
		return seed
	}
	for i := range msgs {
		msgs[i].Priority = protocol.PriorityOf(msgs[i].Type)
	}
	return msgs
}

func (s *Snapshots) SaveNickname(nick string) error {
	return s.kv.Put(KeyNickname, []byte(nick))
}

// LoadNickname returns the stored nickname or "".
func (s *Snapshots) LoadNickname() string {
	data, err := s.kv.Get(KeyNickname)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("Failed to read nickname", "error", err)
		}
		return ""
	}
	return string(data)
}

func (s *Snapshots) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Put(key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Snapshots) get(key string, v any) bool {
	data, err := s.kv.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("Failed to read snapshot", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("Discarding unreadable snapshot", "key", key, "error", err)
		return false
	}
	return true
}
