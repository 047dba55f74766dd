package events

import "retailops/internal/review"

const (
	TopicDirectiveHighlight = "directive.highlight"
	TopicSaleNavigate       = "sale.navigate"
	TopicRequestCreated     = "request.created"
	TopicRequestDecided     = "request.decided"
	TopicSaleRecorded       = "sale.recorded"
	TopicValidityUpdated    = "validity.updated"
)

// DirectiveEvent carries a highlight directive to every connected review session.
type DirectiveEvent struct {
	Directive review.Directive `json:"directive"`
}

// SaleNavigateEvent asks sales tables to bring one sale into view.
type SaleNavigateEvent struct {
	SaleID int64 `json:"sale_id"`
}

// RequestEvent describes a created or decided account/inventory request.
type RequestEvent struct {
	Kind     review.Kind `json:"kind"`
	ID       int64       `json:"id"`
	Status   string      `json:"status"`
	Actor    string      `json:"actor,omitempty"`
	Branch   string      `json:"branch,omitempty"`
	Decision string      `json:"decision,omitempty"`
}

// SaleEvent describes a recorded sale.
type SaleEvent struct {
	SaleID int64  `json:"sale_id"`
	Branch string `json:"branch"`
	Total  string `json:"total"`
}

// ValidityEvent reports that product validity classes changed for a branch.
type ValidityEvent struct {
	Branch   string `json:"branch"`
	Expired  int64  `json:"expired"`
	Expiring int64  `json:"expiring"`
}
