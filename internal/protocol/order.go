package protocol

import (
	"cmp"
	"slices"
)

// SortCanonical orders messages for display: every SOS first, then the rest
// newest first. The sort is stable, so equal keys keep their input order.
func SortCanonical(msgs []Message) {
	slices.SortStableFunc(msgs, compareCanonical)
}

// Canonical returns a sorted copy and leaves msgs untouched.
func Canonical(msgs []Message) []Message {
	out := slices.Clone(msgs)
	SortCanonical(out)
	return out
}

func compareCanonical(a, b Message) int {
	aSOS, bSOS := a.Type == KindSOS, b.Type == KindSOS
	if aSOS != bSOS {
		if aSOS {
			return -1
		}
		return 1
	}
	return cmp.Compare(b.Timestamp, a.Timestamp)
}

// CountKind counts messages of kind k.
func CountKind(msgs []Message, k Kind) int {
	n := 0
	for _, m := range msgs {
		if m.Type == k {
			n++
		}
	}
	return n
}
