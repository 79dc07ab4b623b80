package core

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// Tactical call signs used when no nickname has been chosen yet.
var callSigns = []string{"Ghost-1", "Rescue-Prime", "Watchman", "Sector-7", "Alpha-Six", "Beacon", "Sentry", "Outpost-Delta"}

// UnknownNickname is shown for peers that announce without a nickname.
const UnknownNickname = "Unknown Unit"

// NewPeerID generates a process-unique peer id. It is never persisted: a
// restarted process is a new peer.
func NewPeerID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "peer-" + raw[:12]
}

// NewMessageID returns a random UUID for an outbound message.
func NewMessageID() string {
	return uuid.NewString()
}

// RandomNickname picks a call sign with a numeric suffix, e.g. "Beacon-412".
func RandomNickname(r *rand.Rand) string {
	if r == nil {
		r = rand.New(rand.NewSource(rand.Int63()))
	}
	return fmt.Sprintf("%s-%d", callSigns[r.Intn(len(callSigns))], r.Intn(999))
}

// NormalizeNickname trims whitespace and substitutes UnknownNickname for blanks.
func NormalizeNickname(nick string) string {
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return UnknownNickname
	}
	return nick
}
