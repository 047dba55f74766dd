package review

import (
	"slices"
	"time"
)

// CombinedEntry is a read-only projection of one request in the merged feed.
type CombinedEntry struct {
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
	Record    Request   `json:"record"`
}

// Combine merges both pending streams into one feed, newest first.
func Combine(users []UserAccountRequest, inventory []InventoryChangeRequest) []CombinedEntry {
	entries := make([]CombinedEntry, 0, len(users)+len(inventory))
	for _, u := range users {
		entries = append(entries, CombinedEntry{Kind: KindUser, CreatedAt: u.Created(), Record: u})
	}
	for _, r := range inventory {
		entries = append(entries, CombinedEntry{Kind: KindInventory, CreatedAt: r.Created(), Record: r})
	}
	slices.SortStableFunc(entries, func(a, b CombinedEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return entries
}
