package review

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// KindSale identifies sale rows in the view registry.
const KindSale Kind = "sale"

// NavState is the position of the sales table in its navigate-and-highlight cycle.
type NavState string

const (
	NavIdle               NavState = "idle"
	NavPending            NavState = "navigation_pending"
	NavPageCorrecting     NavState = "page_correcting"
	NavHighlightScheduled NavState = "highlight_scheduled"
	NavHighlightActive    NavState = "highlight_active"
)

// FilterChange tags who changed the sales filter. Only user-initiated changes send the table
// back to page one.
type FilterChange int

const (
	UserInitiatedFilterChange FilterChange = iota
	NavigationInitiatedFilterChange
)

// SaleRow is the part of a sale the table filters and paginates on.
type SaleRow struct {
	ID          int64  `json:"id"`
	Status      string `json:"status"`
	BranchName  string `json:"branch_name"`
	CashierName string `json:"cashier_name"`
	CreatedAt   string `json:"created_at"`
}

// SalesNavigatorOptions configures a SalesNavigator.
type SalesNavigatorOptions struct {
	PerPage  int
	Washout  time.Duration
	Clock    clock.Clock
	Scroller Scroller
	Logger   *zap.SugaredLogger
	// OnTransition is told about every state change, in order.
	OnTransition func(from, to NavState)
}

// SalesNavigator moves the sales table to an externally requested sale and highlights it once
// its row is rendered.
type SalesNavigator struct {
	opts     SalesNavigatorOptions
	registry *ViewRegistry

	mu          sync.Mutex
	rows        []SaleRow
	status      string
	search      string
	page        int
	state       NavState
	target      int64
	highlighted int64
	generation  uint64
	timer       *clock.Timer
	closed      bool
}

func NewSalesNavigator(opts SalesNavigatorOptions) *SalesNavigator {
	if opts.PerPage <= 0 {
		opts.PerPage = 10
	}
	if opts.Washout <= 0 {
		opts.Washout = DefaultWashout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &SalesNavigator{
		opts:     opts,
		registry: NewViewRegistry(),
		status:   StatusAll,
		page:     1,
		state:    NavIdle,
	}
}

func (n *SalesNavigator) SetSales(rows []SaleRow) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rows = slices.Clone(rows)
	n.page = clampPage(n.page, n.pageCount())
	n.evaluate()
}

// ChangeFilter applies a status filter and search term.
func (n *SalesNavigator) ChangeFilter(status, search string, origin FilterChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changeFilter(status, search, origin)
}

func (n *SalesNavigator) changeFilter(status, search string, origin FilterChange) {
	if status == "" {
		status = StatusAll
	}
	n.status = normalize(status)
	n.search = strings.TrimSpace(search)
	if origin == UserInitiatedFilterChange {
		n.page = 1
	}
}

func (n *SalesNavigator) SetPage(p int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.page = clampPage(p, n.pageCount())
}

func (n *SalesNavigator) Page() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.page
}

func (n *SalesNavigator) State() NavState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Highlighted returns the highlighted sale, if any.
func (n *SalesNavigator) Highlighted() (int64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.highlighted, n.highlighted != 0
}

// VisibleIDs returns the filtered sale IDs in table order.
func (n *SalesNavigator) VisibleIDs() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visible()
}

// PageIDs returns the sale IDs on the current page.
func (n *SalesNavigator) PageIDs() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := n.visible()
	start := (n.page - 1) * n.opts.PerPage
	if start >= len(ids) {
		return nil
	}
	return ids[start:min(start+n.opts.PerPage, len(ids))]
}

// Navigate starts navigation to a sale. The filter is reset to show every sale without the
// usual return to page one.
func (n *SalesNavigator) Navigate(id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.target = id
	n.transition(NavPending)
	n.changeFilter(StatusAll, "", NavigationInitiatedFilterChange)
	n.evaluate()
}

// Render installs the row handles of the latest render and activates a scheduled highlight
// once the target row is among them.
func (n *SalesNavigator) Render(rows map[int64]ViewHandle) {
	n.registry.Replace(LayoutDesktop, KindSale, rows)

	n.mu.Lock()
	if n.closed || n.state != NavHighlightScheduled {
		n.mu.Unlock()
		return
	}
	id := n.target
	if _, ok := rows[id]; !ok {
		n.mu.Unlock()
		return
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.generation++
	gen := n.generation
	n.highlighted = id
	n.target = 0
	n.transition(NavHighlightActive)
	n.timer = n.opts.Clock.AfterFunc(n.opts.Washout, func() { n.expire(gen) })
	n.mu.Unlock()

	if n.opts.Scroller != nil {
		scrollTo(n.opts.Scroller, n.registry, LayoutDesktop, KindSale, id)
	}
}

// Close stops the un-highlight timer and ignores any further navigation.
func (n *SalesNavigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *SalesNavigator) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || gen != n.generation {
		return
	}
	n.timer = nil
	n.highlighted = 0
	if n.state == NavHighlightActive {
		n.transition(NavIdle)
	}
}

// evaluate advances a pending navigation: correct the page first, then schedule the highlight.
func (n *SalesNavigator) evaluate() {
	if n.state != NavPending && n.state != NavPageCorrecting {
		return
	}
	idx := slices.Index(n.visible(), n.target)
	if idx < 0 {
		n.opts.Logger.Debugw("sale navigation target not found", "sale_id", n.target)
		return
	}
	target := pageForIndex(idx, n.opts.PerPage)
	if target != n.page {
		n.transition(NavPageCorrecting)
		n.page = target
	}
	n.transition(NavHighlightScheduled)
}

func (n *SalesNavigator) transition(to NavState) {
	from := n.state
	if from == to {
		return
	}
	n.state = to
	if n.opts.OnTransition != nil {
		n.opts.OnTransition(from, to)
	}
}

func (n *SalesNavigator) visible() []int64 {
	ids := make([]int64, 0, len(n.rows))
	term := normalize(n.search)
	for _, r := range n.rows {
		if n.status != StatusAll && normalize(r.Status) != n.status {
			continue
		}
		if !containsTerm(term, r.BranchName, r.CashierName, r.Status) {
			continue
		}
		ids = append(ids, r.ID)
	}
	return ids
}

func (n *SalesNavigator) pageCount() int {
	c := len(n.visible())
	if c == 0 {
		return 1
	}
	return (c + n.opts.PerPage - 1) / n.opts.PerPage
}
