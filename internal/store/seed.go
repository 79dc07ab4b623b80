package store

import (
	"time"

	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

// DemoMessages is the starter history shown on a node with no stored history.
// Timestamps are relative to now.
func DemoMessages(now time.Time) []protocol.Message {
	ago := func(d time.Duration) int64 { return now.Add(-d).UnixMilli() }
	return []protocol.Message{
		{
			ID:        "dummy-1",
			Type:      protocol.KindSOS,
			Sender:    "Ghost-1",
			SenderID:  "peer-ghost-1",
			Timestamp: ago(5 * time.Minute),
			Priority:  protocol.PriorityOf(protocol.KindSOS),
			Payload: protocol.Payload{
				Text:           "CRITICAL: Structure collapse near Sector 7 Bridge. 3 civilians trapped. Heavy lifting gear required immediately.",
				ManualLocation: "SECTOR 7 BRIDGE / NORTH CROSSING",
				Location:       &protocol.Location{Lat: 34.0522, Lng: -118.2437},
			},
		},
		{
			ID:        "dummy-2",
			Type:      protocol.KindMedical,
			Sender:    "Rescue-Prime",
			SenderID:  "peer-rescue-prime",
			Timestamp: ago(12 * time.Minute),
			Priority:  protocol.PriorityOf(protocol.KindMedical),
			Payload: protocol.Payload{
				Text:           "Medical triage established at High School Gym. We need insulin and clean bandages.",
				ManualLocation: "CENTRAL HIGH GYMNASIUM",
			},
		},
		{
			ID:        "dummy-3",
			Type:      protocol.KindAlert,
			Sender:    "Watchman",
			SenderID:  "peer-watchman",
			Timestamp: ago(20 * time.Minute),
			Priority:  protocol.PriorityOf(protocol.KindAlert),
			Payload: protocol.Payload{
				Text:           "ALERT: Water levels rising rapidly. Evacuate to higher ground. Flood expected in 30m.",
				ManualLocation: "RIVERFRONT DISTRICT",
				Location:       &protocol.Location{Lat: 34.0622, Lng: -118.2537},
			},
		},
	}
}
