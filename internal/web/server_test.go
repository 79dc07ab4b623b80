package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/satishydv/meshaid-mvp/internal/discovery"
	"github.com/satishydv/meshaid-mvp/internal/engine"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

// MockEngine implements the Engine interface for testing
type MockEngine struct {
	PeerID  string
	Sent    []protocol.Message
	history []protocol.Message
	peers   []discovery.PeerRecord
}

func (m *MockEngine) LocalPeerID() string { return m.PeerID }

func (m *MockEngine) Send(kind protocol.Kind, text string, loc *protocol.Location, manual string) (protocol.Message, bool) {
	if strings.TrimSpace(text) == "" {
		return protocol.Message{}, false
	}
	msg := protocol.Message{
		ID:        "sent-1",
		Type:      kind,
		SenderID:  m.PeerID,
		Timestamp: 1,
		Priority:  protocol.PriorityOf(kind),
		Payload:   protocol.Payload{Text: text, Location: loc, ManualLocation: manual},
	}
	m.Sent = append(m.Sent, msg)
	return msg, true
}

func (m *MockEngine) Peers() []discovery.PeerRecord { return m.peers }

func (m *MockEngine) History() []protocol.Message { return m.history }

func (m *MockEngine) Stats() engine.Stats {
	return engine.Stats{PeerID: m.PeerID, PeersKnown: len(m.peers), Messages: len(m.history)}
}

func setupTestServer(t *testing.T) (http.Handler, *MockEngine) {
	t.Helper()
	mock := &MockEngine{
		PeerID: "peer-test",
		history: []protocol.Message{
			{ID: "a", Type: protocol.KindInfo, Timestamp: 300, Payload: protocol.Payload{Text: "newest info"}},
			{ID: "b", Type: protocol.KindSOS, Timestamp: 100, Payload: protocol.Payload{Text: "old sos"}},
		},
		peers: []discovery.PeerRecord{
			{ID: "peer-a", Nickname: "Alpha", LastSeen: 1, Status: discovery.StatusOnline},
			{ID: "peer-b", Nickname: "Bravo", LastSeen: 1, Status: discovery.StatusOffline},
		},
	}
	handler, err := NewServer(mock, 8080).Handler()
	if err != nil {
		t.Fatalf("Failed to build handler: %v", err)
	}
	return handler, mock
}

func TestIndexPage(t *testing.T) {
	handler, _ := setupTestServer(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<title>MeshAid Web Uplink</title>") {
		t.Errorf("Missing title in body")
	}
	if !strings.Contains(body, "peer-test") || !strings.Contains(body, `value="MEDICAL"`) {
		t.Errorf("Template data not rendered")
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/static/app.js", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected static asset, got %d", w.Code)
	}
}

func TestAPIMessagesCanonicalOrder(t *testing.T) {
	handler, _ := setupTestServer(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/messages", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var messages []protocol.Message
	if err := json.NewDecoder(w.Body).Decode(&messages); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if len(messages) != 2 || messages[0].ID != "b" {
		t.Errorf("SOS should come first, got %+v", messages)
	}
}

func TestPostMessageJSON(t *testing.T) {
	handler, mock := setupTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"type":           "medical",
		"text":           "Hello Web",
		"manualLocation": "Clinic",
		"location":       map[string]float64{"lat": 1.5, "lng": 2.5},
	})
	req := httptest.NewRequest("POST", "/api/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("Expected one send, got %d", len(mock.Sent))
	}
	sent := mock.Sent[0]
	if sent.Type != protocol.KindMedical || sent.Payload.ManualLocation != "Clinic" || sent.Payload.Location == nil {
		t.Errorf("Unexpected sent message %+v", sent)
	}
}

func TestPostMessageForm(t *testing.T) {
	handler, mock := setupTestServer(t)

	form := url.Values{"text": {"road blocked"}}
	req := httptest.NewRequest("POST", "/api/messages", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}
	if mock.Sent[0].Type != protocol.KindInfo {
		t.Errorf("Form posts default to INFO, got %s", mock.Sent[0].Type)
	}
}

func TestPostMessageRejects(t *testing.T) {
	handler, mock := setupTestServer(t)

	for _, body := range []string{`{"type":"SOS","text":"  "}`, `{"type":"PARTY","text":"hi"}`, `not json`} {
		req := httptest.NewRequest("POST", "/api/messages", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}
	if len(mock.Sent) != 0 {
		t.Errorf("Nothing should be sent, got %d", len(mock.Sent))
	}
}

func TestPeersAndStatus(t *testing.T) {
	handler, _ := setupTestServer(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/peers", nil))
	var peers []discovery.PeerRecord
	if err := json.NewDecoder(w.Body).Decode(&peers); err != nil {
		t.Fatalf("Failed to decode peers: %v", err)
	}
	if len(peers) != 2 || peers[1].Status != discovery.StatusOffline {
		t.Errorf("Unexpected peers %+v", peers)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/status", nil))
	var stats engine.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if stats.PeerID != "peer-test" || stats.PeersKnown != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestGraphAndDebugVars(t *testing.T) {
	handler, _ := setupTestServer(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/graph", nil))
	var graph struct {
		Nodes []struct{ ID, Color string }
		Links []struct{ From, To string }
	}
	if err := json.NewDecoder(w.Body).Decode(&graph); err != nil {
		t.Fatalf("Failed to decode graph: %v", err)
	}
	if len(graph.Nodes) != 3 || len(graph.Links) != 2 || graph.Nodes[2].Color != "#555555" {
		t.Errorf("Unexpected graph %+v", graph)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/debug/vars", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "memstats") {
		t.Errorf("Expected expvar output, got %d", w.Code)
	}
}
