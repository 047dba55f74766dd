package review

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Outcome reports what a highlighter did with a directive.
type Outcome string

const (
	OutcomeIgnored     Outcome = "ignored"
	OutcomeWaiting     Outcome = "waiting"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeMiss        Outcome = "miss"
	OutcomeHighlighted Outcome = "highlighted"
)

const (
	DefaultWashout          = 6000 * time.Millisecond
	DefaultScrollDelay      = 140 * time.Millisecond
	DefaultMobileBreakpoint = 767
)

// HighlighterConfig tunes one highlighter instance.
type HighlighterConfig struct {
	Kind Kind
	// Context is the name reported back through the consumed callback.
	Context     string
	Washout     time.Duration
	ScrollDelay time.Duration
	// Breakpoint is the max-width media query selecting the mobile layout.
	Breakpoint int
}

func (c HighlighterConfig) withDefaults() HighlighterConfig {
	if c.Washout <= 0 {
		c.Washout = DefaultWashout
	}
	if c.ScrollDelay <= 0 {
		c.ScrollDelay = DefaultScrollDelay
	}
	if c.Breakpoint <= 0 {
		c.Breakpoint = DefaultMobileBreakpoint
	}
	if c.Context == "" {
		c.Context = string(c.Kind)
	}
	return c
}

// HighlighterDeps are the collaborators a highlighter reads from and drives.
type HighlighterDeps struct {
	Board    *Board
	Group    *HighlightGroup
	Registry *ViewRegistry
	Viewport Viewport
	Scroller Scroller
	Clock    clock.Clock
	Logger   *zap.SugaredLogger
	// OnConsumed is told once per directive that it has been handled, hit or miss.
	OnConsumed func(context string)
}

// Highlighter resolves focus directives of one kind against the board, moves pagination to the
// target, scrolls it into view after layout settles and clears the highlight after the wash-out.
type Highlighter struct {
	cfg  HighlighterConfig
	deps HighlighterDeps

	// publish orders group updates without holding mu while group listeners run.
	publish sync.Mutex

	mu          sync.Mutex
	handled     bool
	lastToken   int64
	pending     *Directive
	generation  uint64
	scrollTimer *clock.Timer
	clearTimer  *clock.Timer
	closed      bool
}

func NewHighlighter(cfg HighlighterConfig, deps HighlighterDeps) *Highlighter {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Group == nil {
		deps.Group = NewHighlightGroup()
	}
	if deps.Registry == nil {
		deps.Registry = NewViewRegistry()
	}
	return &Highlighter{cfg: cfg.withDefaults(), deps: deps}
}

func (h *Highlighter) Kind() Kind { return h.cfg.Kind }

// Highlighted returns the IDs this highlighter currently has highlighted.
func (h *Highlighter) Highlighted() []int64 {
	return h.deps.Group.IDs(h.cfg.Kind)
}

// Process handles one directive. Directives for another kind or type are ignored, directives
// arriving while the list loads are parked until Resume, and a token already handled is a no-op.
func (h *Highlighter) Process(d *Directive) Outcome {
	if d == nil || d.Type != DirectiveApprovalHighlight || d.FocusKind != h.cfg.Kind {
		return OutcomeIgnored
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return OutcomeIgnored
	}
	if h.handled && h.lastToken == d.TriggeredAt {
		h.mu.Unlock()
		return OutcomeDuplicate
	}
	if h.deps.Board.Loading(h.cfg.Kind) {
		parked := *d
		h.pending = &parked
		h.mu.Unlock()
		return OutcomeWaiting
	}

	h.pending = nil
	h.handled = true
	h.lastToken = d.TriggeredAt
	h.generation++
	h.stopTimers()

	gen := h.generation
	candidates := h.resolve(d)
	if len(candidates) == 0 {
		h.mu.Unlock()
		h.publishIfCurrent(gen, func() { h.deps.Group.Clear(h.cfg.Kind) })
		h.deps.Logger.Debugw("highlight directive resolved nothing",
			"kind", h.cfg.Kind, "triggered_at", d.TriggeredAt)
		h.consume()
		return OutcomeMiss
	}

	primary := candidates[0]
	if page, ok := h.deps.Board.PageOf(h.cfg.Kind, primary); ok && page != h.deps.Board.Page(h.cfg.Kind) {
		h.deps.Board.SetPage(h.cfg.Kind, page)
	}
	h.mu.Unlock()
	h.publishIfCurrent(gen, func() { h.deps.Group.Set(h.cfg.Kind, candidates) })

	// timers start after the group update so the wash-out cannot clear before it lands
	h.mu.Lock()
	if !h.closed && gen == h.generation {
		h.scrollTimer = h.deps.Clock.AfterFunc(h.cfg.ScrollDelay, func() { h.scroll(gen, primary) })
		h.clearTimer = h.deps.Clock.AfterFunc(h.cfg.Washout, func() { h.expire(gen) })
	}
	h.mu.Unlock()

	h.deps.Logger.Infow("highlight directive applied",
		"kind", h.cfg.Kind, "ids", candidates, "triggered_at", d.TriggeredAt)
	h.consume()
	return OutcomeHighlighted
}

// Resume re-runs a directive that was parked while the list was loading.
func (h *Highlighter) Resume() Outcome {
	h.mu.Lock()
	d := h.pending
	h.mu.Unlock()
	if d == nil {
		return OutcomeIgnored
	}
	return h.Process(d)
}

// Close stops pending timers; later timer callbacks and directives become no-ops.
func (h *Highlighter) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.pending = nil
	h.stopTimers()
}

func (h *Highlighter) consume() {
	if h.deps.OnConsumed != nil {
		h.deps.OnConsumed(h.cfg.Context)
	}
}

func (h *Highlighter) stopTimers() {
	if h.scrollTimer != nil {
		h.scrollTimer.Stop()
		h.scrollTimer = nil
	}
	if h.clearTimer != nil {
		h.clearTimer.Stop()
		h.clearTimer = nil
	}
}

func (h *Highlighter) current(gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed && gen == h.generation
}

func (h *Highlighter) scroll(gen uint64, id int64) {
	if !h.current(gen) {
		return
	}
	layout := layoutFor(h.deps.Viewport, h.cfg.Breakpoint)
	if h.deps.Scroller == nil || !scrollTo(h.deps.Scroller, h.deps.Registry, layout, h.cfg.Kind, id) {
		h.deps.Logger.Debugw("highlight target not rendered", "kind", h.cfg.Kind, "id", id, "layout", layout)
	}
}

func (h *Highlighter) expire(gen uint64) {
	h.mu.Lock()
	if h.closed || gen != h.generation {
		h.mu.Unlock()
		return
	}
	h.clearTimer = nil
	h.mu.Unlock()
	h.publishIfCurrent(gen, func() { h.deps.Group.Clear(h.cfg.Kind) })
}

// publishIfCurrent applies a group update unless a newer directive has superseded gen. Group
// listeners run with mu released.
func (h *Highlighter) publishIfCurrent(gen uint64, update func()) {
	h.publish.Lock()
	defer h.publish.Unlock()
	if !h.current(gen) {
		return
	}
	update()
}

// resolve intersects explicit target IDs with the visible list, or falls back to matching the
// directive's user id/name against the records.
func (h *Highlighter) resolve(d *Directive) []int64 {
	if len(d.TargetIDs) > 0 {
		available := make(map[int64]bool)
		for _, id := range h.deps.Board.PendingIDs(h.cfg.Kind) {
			available[id] = true
		}
		out := make([]int64, 0, len(d.TargetIDs))
		seen := make(map[int64]bool)
		for _, raw := range d.TargetIDs {
			id, ok := coerceID(raw)
			if !ok || !available[id] || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
		return out
	}

	uid, hasUID := coerceID(d.UserID)
	name := normalize(d.UserName)
	if !hasUID && name == "" {
		return nil
	}

	var out []int64
	switch h.cfg.Kind {
	case KindUser:
		for _, r := range h.deps.Board.PendingUsers() {
			if (hasUID && r.UserID == uid) || (name != "" && normalize(r.FullName) == name) {
				out = append(out, r.UserID)
			}
		}
	case KindInventory:
		for _, r := range h.deps.Board.PendingInventory() {
			if (hasUID && r.CreatedByID == uid) || (name != "" && normalize(r.CreatedByName) == name) {
				out = append(out, r.PendingID)
			}
		}
	}
	return out
}
