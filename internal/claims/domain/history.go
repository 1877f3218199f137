package domain

import "time"

// DefaultHistoryCapacity bounds the per-claim conversation log.
const DefaultHistoryCapacity = 10

// HistoryRole says who produced a history entry.
type HistoryRole string

const (
	RoleClaimant HistoryRole = "claimant"
	RoleAgent    HistoryRole = "agent"
	RoleSeller   HistoryRole = "seller"
	RoleSystem   HistoryRole = "system"
)

// HistoryEntry is one line of the claim's conversation log.
type HistoryEntry struct {
	At      time.Time   `json:"at"`
	Role    HistoryRole `json:"role"`
	Text    string      `json:"text"`
	Stage   string      `json:"stage,omitempty"`
	Failed  bool        `json:"failed,omitempty"`
	Outcome string      `json:"outcome,omitempty"`
}

// History is a fixed-capacity log; appending beyond capacity evicts the oldest entries.
type History struct {
	Capacity int            `json:"capacity"`
	Entries  []HistoryEntry `json:"entries"`
}

// NewHistory creates an empty log. Non-positive capacities fall back to the default.
func NewHistory(capacity int) History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return History{Capacity: capacity, Entries: make([]HistoryEntry, 0, capacity)}
}

// Append adds entry, dropping the oldest entries when full.
func (h *History) Append(entry HistoryEntry) {
	if h.Capacity <= 0 {
		h.Capacity = DefaultHistoryCapacity
	}
	h.Entries = append(h.Entries, entry)
	if overflow := len(h.Entries) - h.Capacity; overflow > 0 {
		kept := make([]HistoryEntry, h.Capacity)
		copy(kept, h.Entries[overflow:])
		h.Entries = kept
	}
}

// Len returns the number of retained entries.
func (h History) Len() int {
	return len(h.Entries)
}
