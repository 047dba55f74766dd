package review

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// DirectiveApprovalHighlight is the only directive type the approval highlighters act on.
const DirectiveApprovalHighlight = "approval-highlight"

// Directive asks a list view to bring one or more entities into focus. TriggeredAt is the
// idempotency token: each highlighter remembers only the last token it handled, so a repeat of
// that token is a no-op while an older token arriving after a newer one is applied again.
type Directive struct {
	Type        string `json:"type"`
	FocusKind   Kind   `json:"focusKind"`
	TargetIDs   []any  `json:"targetIds,omitempty"`
	UserID      any    `json:"userId,omitempty"`
	UserName    string `json:"userName,omitempty"`
	TriggeredAt int64  `json:"triggeredAt"`
}

// coerceID converts a loosely typed identifier (JSON number, numeric string, Go integer) to int64.
func coerceID(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		return floatID(n)
	case float32:
		return floatID(float64(n))
	case json.Number:
		return parseID(n.String())
	case string:
		return parseID(n)
	default:
		return 0, false
	}
}

func floatID(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func parseID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatID(f)
	}
	return 0, false
}

// HighlightGroup holds the single active highlight context shared by every highlighter on a
// screen. Setting the IDs of one kind clears any other kind.
type HighlightGroup struct {
	mu        sync.Mutex
	active    Kind
	ids       []int64
	listeners []func(kind Kind, ids []int64)
}

func NewHighlightGroup() *HighlightGroup {
	return &HighlightGroup{}
}

// OnChange registers fn to be told about every highlight change. A nil ids slice means cleared.
func (g *HighlightGroup) OnChange(fn func(kind Kind, ids []int64)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

func (g *HighlightGroup) Set(kind Kind, ids []int64) {
	g.mu.Lock()
	previous := g.active
	g.active = kind
	g.ids = slices.Clone(ids)
	listeners := slices.Clone(g.listeners)
	g.mu.Unlock()

	for _, fn := range listeners {
		if previous != "" && previous != kind {
			fn(previous, nil)
		}
		fn(kind, slices.Clone(ids))
	}
}

// Clear drops the highlight of kind if it is the active context.
func (g *HighlightGroup) Clear(kind Kind) {
	g.mu.Lock()
	if g.active != kind {
		g.mu.Unlock()
		return
	}
	g.active = ""
	g.ids = nil
	listeners := slices.Clone(g.listeners)
	g.mu.Unlock()

	for _, fn := range listeners {
		fn(kind, nil)
	}
}

// IDs returns the highlighted IDs of kind, empty when another context is active.
func (g *HighlightGroup) IDs(kind Kind) []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != kind {
		return []int64{}
	}
	return slices.Clone(g.ids)
}
