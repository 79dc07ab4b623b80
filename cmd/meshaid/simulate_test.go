package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/satishydv/meshaid-mvp/internal/config"
)

func TestSimulationReachesEveryPeer(t *testing.T) {
	var out bytes.Buffer
	sim := simulation{peers: 3, duration: 500 * time.Millisecond, dropOut: true}
	if err := runSimulation(context.Background(), &out, config.Default(), sim); err != nil {
		t.Fatalf("Simulation failed: %v", err)
	}

	report := out.String()
	if got := strings.Count(report, "3 messages"); got != 2 {
		t.Errorf("Both remaining peers should hold all 3 messages, report:\n%s", report)
	}
	if !strings.Contains(report, "left the mesh") || !strings.Contains(report, " offline") {
		t.Errorf("Dropped peer should show offline, report:\n%s", report)
	}
	if !strings.Contains(report, "1/2 peers online") {
		t.Errorf("Expected one peer online of two known, report:\n%s", report)
	}
}

func TestSimulationNeedsTwoPeers(t *testing.T) {
	if err := runSimulation(context.Background(), &bytes.Buffer{}, config.Default(), simulation{peers: 1}); err == nil {
		t.Error("Expected error for a single peer")
	}
}

func TestKindsTableListsEveryKind(t *testing.T) {
	out := kindsTable().Render()
	for _, want := range []string{"SOS", "MEDICAL", "RESOURCE", "ALERT", "INFO"} {
		if !strings.Contains(out, want) {
			t.Errorf("Missing %s in:\n%s", want, out)
		}
	}
}
