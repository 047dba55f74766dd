package review

import "strings"

// StatusAll disables status filtering.
const StatusAll = "all"

// Filter narrows a request list. Empty fields match everything.
type Filter struct {
	Status     string
	ActionType string
	Term       string
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsPending reports whether a raw status value means "pending", ignoring case and padding.
func IsPending(status string) bool {
	return normalize(status) == StatusPending
}

func (f Filter) matchesStatus(status string) bool {
	want := normalize(f.Status)
	return want == "" || want == StatusAll || normalize(status) == want
}

func (f Filter) matchesAction(action string) bool {
	want := normalize(f.ActionType)
	return want == "" || want == StatusAll || normalize(action) == want
}

// containsTerm is a case-insensitive substring match OR-combined across fields.
func containsTerm(term string, fields ...string) bool {
	term = normalize(term)
	if term == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func userSearchFields(r UserAccountRequest) []string {
	fields := make([]string, 0, 2+len(r.Role))
	fields = append(fields, r.FullName, r.Branch)
	return append(fields, r.Role...)
}

func inventorySearchFields(r InventoryChangeRequest) []string {
	return []string{r.ProductName(), r.BranchName, r.CreatedByName}
}

// FilterUsers returns the user requests matching f in source order.
func FilterUsers(reqs []UserAccountRequest, f Filter) []UserAccountRequest {
	out := make([]UserAccountRequest, 0, len(reqs))
	for _, r := range reqs {
		if !f.matchesStatus(r.RequestStatus) {
			continue
		}
		if !containsTerm(f.Term, userSearchFields(r)...) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterInventory returns the inventory requests matching f in source order.
func FilterInventory(reqs []InventoryChangeRequest, f Filter) []InventoryChangeRequest {
	out := make([]InventoryChangeRequest, 0, len(reqs))
	for _, r := range reqs {
		if !f.matchesStatus(r.RequestStatus) || !f.matchesAction(r.ActionType) {
			continue
		}
		if !containsTerm(f.Term, inventorySearchFields(r)...) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// PendingUsers keeps pending user requests whose name, branch or roles contain term.
func PendingUsers(reqs []UserAccountRequest, term string) []UserAccountRequest {
	return FilterUsers(reqs, Filter{Status: StatusPending, Term: term})
}

// PendingInventory keeps pending inventory requests whose product, branch or creator contain term.
func PendingInventory(reqs []InventoryChangeRequest, term string) []InventoryChangeRequest {
	return FilterInventory(reqs, Filter{Status: StatusPending, Term: term})
}
