package metrics

import "expvar"

var (
	framesReceived   = expvar.NewInt("frames_received_total")
	framesDropped    = expvar.NewInt("frames_dropped_total")
	heartbeatsSent   = expvar.NewInt("heartbeats_sent_total")
	messagesSent     = expvar.NewInt("messages_sent_total")
	messagesReceived = expvar.NewInt("messages_received_total")
	peersOnline      = expvar.NewInt("peers_online")
	peersKnown       = expvar.NewInt("peers_known")
)

// IncFrameReceived counts a frame that decoded cleanly.
func IncFrameReceived() { framesReceived.Add(1) }

// IncFrameDropped counts a malformed or late frame.
func IncFrameDropped() { framesDropped.Add(1) }

func IncHeartbeatSent() { heartbeatsSent.Add(1) }

func IncMessageSent() { messagesSent.Add(1) }

func IncMessageReceived() { messagesReceived.Add(1) }

// SetPeers records the registry size after a change.
func SetPeers(online, known int) {
	peersOnline.Set(int64(online))
	peersKnown.Set(int64(known))
}
