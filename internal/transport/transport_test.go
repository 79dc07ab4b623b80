package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// collector records delivered payloads on a channel.
func collector(t Transport) chan string {
	ch := make(chan string, 16)
	t.OnReceive(func(p []byte) { ch <- string(p) })
	return ch
}

func expect(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("Expected %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %q", want)
	}
}

func expectNothing(t *testing.T, ch chan string) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("Unexpected delivery %q", got)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestBusBroadcastWithoutEcho(t *testing.T) {
	bus := NewBus()
	a := bus.Join("mesh")
	b := bus.Join("mesh")
	c := bus.Join("mesh")
	other := bus.Join("elsewhere")
	defer a.Close()
	defer b.Close()
	defer c.Close()
	defer other.Close()

	inA, inB, inC, inOther := collector(a), collector(b), collector(c), collector(other)

	if err := a.Post([]byte("hello")); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	expect(t, inB, "hello")
	expect(t, inC, "hello")
	expectNothing(t, inA)
	expectNothing(t, inOther)
}

func TestBusPreservesOrder(t *testing.T) {
	bus := NewBus()
	a := bus.Join("mesh")
	b := bus.Join("mesh")
	defer a.Close()
	defer b.Close()
	in := collector(b)

	for _, s := range []string{"1", "2", "3"} {
		_ = a.Post([]byte(s))
	}
	expect(t, in, "1")
	expect(t, in, "2")
	expect(t, in, "3")
}

func TestBusClosedEndpoint(t *testing.T) {
	bus := NewBus()
	a := bus.Join("mesh")
	b := bus.Join("mesh")
	in := collector(b)
	b.Close()

	if err := a.Post([]byte("late")); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	expectNothing(t, in)
	if err := b.Post([]byte("x")); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	a.Close()
	a.Close()
}

func TestUDPLoopback(t *testing.T) {
	cfg := UDPConfig{BindHost: "127.0.0.1", BasePort: 19850, PortSpan: 3, Targets: []string{"127.0.0.1"}}
	a, err := ListenUDP(cfg)
	if err != nil {
		t.Fatalf("ListenUDP a failed: %v", err)
	}
	defer a.Close()
	b, err := ListenUDP(cfg)
	if err != nil {
		t.Fatalf("ListenUDP b failed: %v", err)
	}
	defer b.Close()

	if a.LocalAddr().String() == b.LocalAddr().String() {
		t.Fatalf("Both endpoints bound %s", a.LocalAddr())
	}

	inA, inB := collector(a), collector(b)
	if err := a.Post([]byte(`{"type":"HEARTBEAT"}`)); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	expect(t, inB, `{"type":"HEARTBEAT"}`)
	expectNothing(t, inA)
}

func TestUDPNoTargets(t *testing.T) {
	_, err := ListenUDP(UDPConfig{BindHost: "127.0.0.1", BasePort: 19860, PortSpan: 1})
	if err == nil {
		t.Fatal("Expected error without targets")
	}
}

func TestRelayHub(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.CloseAll()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	ctx := context.Background()

	a, err := DialRelay(ctx, wsURL, "mesh")
	if err != nil {
		t.Fatalf("Dial a failed: %v", err)
	}
	defer a.Close()
	b, err := DialRelay(ctx, wsURL, "mesh")
	if err != nil {
		t.Fatalf("Dial b failed: %v", err)
	}
	defer b.Close()
	other, err := DialRelay(ctx, wsURL, "other")
	if err != nil {
		t.Fatalf("Dial other failed: %v", err)
	}
	defer other.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Count() != 3 {
		t.Fatalf("Expected 3 relay clients, got %d", hub.Count())
	}

	inA, inB, inOther := collector(a), collector(b), collector(other)
	if err := a.Post([]byte("sos")); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	expect(t, inB, "sos")
	expectNothing(t, inA)
	expectNothing(t, inOther)
}
