package review

import (
	"strings"
	"time"
)

// Kind tags which request stream a record came from.
type Kind string

const (
	KindUser      Kind = "user"
	KindInventory Kind = "inventory"
)

// Request status values shared by both request kinds.
const (
	StatusPending          = "pending"
	StatusApproved         = "approved"
	StatusRejected         = "rejected"
	StatusChangesRequested = "changes_requested"
)

// Request is the uniform view over user-account and inventory-change records.
type Request interface {
	Kind() Kind
	RequestID() int64
	Status() string
	Created() time.Time
}

// UserAccountRequest is a registration awaiting an owner decision.
type UserAccountRequest struct {
	UserID        int64    `json:"user_id"`
	FullName      string   `json:"full_name"`
	Branch        string   `json:"branch"`
	Role          []string `json:"role"`
	RequestStatus string   `json:"request_status"`
	CreatedAt     string   `json:"created_at"`
	CreatedByName string   `json:"created_by_name"`
}

func (r UserAccountRequest) Kind() Kind         { return KindUser }
func (r UserAccountRequest) RequestID() int64   { return r.UserID }
func (r UserAccountRequest) Status() string     { return r.RequestStatus }
func (r UserAccountRequest) Created() time.Time { return ParseTimestamp(r.CreatedAt) }

// InventoryPayload carries the proposed product data and, for updates, the state it replaces.
type InventoryPayload struct {
	ProductData  map[string]any `json:"productData"`
	CurrentState map[string]any `json:"currentState,omitempty"`
}

// InventoryChangeRequest is an add/update of a product awaiting manager (and optionally admin) review.
type InventoryChangeRequest struct {
	PendingID           int64            `json:"pending_id"`
	ActionType          string           `json:"action_type"`
	Payload             InventoryPayload `json:"payload"`
	RequestStatus       string           `json:"status"`
	CurrentStage        string           `json:"current_stage"`
	BranchName          string           `json:"branch_name"`
	CreatedByID         int64            `json:"created_by,omitempty"`
	CreatedByName       string           `json:"created_by_name"`
	CreatedAt           string           `json:"created_at"`
	ManagerApproverName string           `json:"manager_approver_name,omitempty"`
	ManagerApprovedAt   string           `json:"manager_approved_at,omitempty"`
}

func (r InventoryChangeRequest) Kind() Kind         { return KindInventory }
func (r InventoryChangeRequest) RequestID() int64   { return r.PendingID }
func (r InventoryChangeRequest) Status() string     { return r.RequestStatus }
func (r InventoryChangeRequest) Created() time.Time { return ParseTimestamp(r.CreatedAt) }

// ProductName reads the product name out of the payload, tolerating both key spellings.
func (r InventoryChangeRequest) ProductName() string {
	for _, key := range []string{"product_name", "name"} {
		if v, ok := r.Payload.ProductData[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a record timestamp. Missing or unparsable values map to the Unix epoch
// so they order as the oldest entries.
func ParseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Unix(0, 0).UTC()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Unix(0, 0).UTC()
}
