package protocol

import (
	"fmt"
	"strings"
)

// Kind is the closed set of message categories carried on the mesh.
type Kind string

const (
	KindSOS      Kind = "SOS"
	KindMedical  Kind = "MEDICAL"
	KindResource Kind = "RESOURCE"
	KindAlert    Kind = "ALERT"
	KindInfo     Kind = "INFO"
)

// KindMeta is the presentation and priority metadata attached to a Kind.
type KindMeta struct {
	Kind        Kind   `json:"kind"`
	Label       string `json:"label"`
	Color       string `json:"color"`
	Priority    int    `json:"priority"`
	Description string `json:"description"`
}

// kindTable is ordered by descending priority.
var kindTable = [...]KindMeta{
	{Kind: KindSOS, Label: "SOS", Color: "#ff2e2e", Priority: 5, Description: "Immediate danger to life"},
	{Kind: KindMedical, Label: "MEDICAL", Color: "#3b82f6", Priority: 4, Description: "Injuries or medical supply needs"},
	{Kind: KindResource, Label: "RESOURCE", Color: "#00f5a0", Priority: 3, Description: "Food, water, or shelter"},
	{Kind: KindAlert, Label: "ALERT", Color: "#fb923c", Priority: 2, Description: "Environmental danger/evacuation"},
	{Kind: KindInfo, Label: "INFO", Color: "#6366f1", Priority: 1, Description: "General information sharing"},
}

// Kinds returns every known kind, highest priority first.
func Kinds() []KindMeta {
	out := make([]KindMeta, len(kindTable))
	copy(out, kindTable[:])
	return out
}

// Info looks up the metadata for k.
func (k Kind) Info() (KindMeta, bool) {
	switch k {
	case KindSOS:
		return kindTable[0], true
	case KindMedical:
		return kindTable[1], true
	case KindResource:
		return kindTable[2], true
	case KindAlert:
		return kindTable[3], true
	case KindInfo:
		return kindTable[4], true
	}
	return KindMeta{}, false
}

// Valid reports whether k is one of the five known kinds.
func (k Kind) Valid() bool {
	_, ok := k.Info()
	return ok
}

func (k Kind) String() string { return string(k) }

// PriorityOf maps a kind to its fixed priority. Unknown kinds rank lowest.
func PriorityOf(k Kind) int {
	info, ok := k.Info()
	if !ok {
		return 0
	}
	return info.Priority
}

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, error) {
	for _, info := range kindTable {
		if strings.EqualFold(string(info.Kind), s) {
			return info.Kind, nil
		}
	}
	return "", fmt.Errorf("unknown message kind %q", s)
}
