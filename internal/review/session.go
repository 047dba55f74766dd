package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ErrSessionClosed is returned for messages that arrive after Close.
var ErrSessionClosed = errors.New("review session closed")

// Source loads the authoritative request and sales lists.
type Source interface {
	UserRequests(ctx context.Context) ([]UserAccountRequest, error)
	InventoryRequests(ctx context.Context) ([]InventoryChangeRequest, error)
	Sales(ctx context.Context) ([]SaleRow, error)
}

// Pusher delivers frames to the connected renderer. It must be safe for concurrent use.
type Pusher interface {
	Push(frame Frame) error
}

// Frame is one server-to-renderer message.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Frame types pushed to the renderer.
const (
	FrameState     = "state"
	FrameScroll    = "scroll"
	FrameHighlight = "highlight"
	FrameConsumed  = "consumed"
)

// Message is one renderer-to-server message.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ScrollCommand asks the renderer to scroll. Either Container/Top or Layout/Kind/ID/Block is set.
type ScrollCommand struct {
	Container string  `json:"container,omitempty"`
	Top       float64 `json:"top,omitempty"`
	Layout    Layout  `json:"layout,omitempty"`
	Kind      Kind    `json:"kind,omitempty"`
	ID        int64   `json:"id,omitempty"`
	Block     string  `json:"block,omitempty"`
}

// SessionConfig tunes a Session.
type SessionConfig struct {
	PageSize      int
	SalesPerPage  int
	Washout       time.Duration
	ScrollDelay   time.Duration
	Breakpoint    int
	ViewportWidth int
}

// SessionDeps are the collaborators of a Session.
type SessionDeps struct {
	Source    Source
	Actions   Callbacks
	Pusher    Pusher
	Sanitizer Sanitizer
	Clock     clock.Clock
	Logger    *zap.SugaredLogger

	OnDirective func(kind Kind, outcome Outcome)
	OnAction    func(kind Kind, action string, outcome ActionOutcome)
}

// PageState is the pagination view of one list.
type PageState struct {
	Page  int     `json:"page"`
	Count int     `json:"count"`
	IDs   []int64 `json:"ids"`
}

// SalesState is the sales table view.
type SalesState struct {
	Page        int      `json:"page"`
	IDs         []int64  `json:"ids"`
	State       NavState `json:"state"`
	Highlighted int64    `json:"highlighted,omitempty"`
}

// State is the full snapshot pushed after every handled message.
type State struct {
	Search      string                    `json:"search"`
	Users       []UserAccountRequest      `json:"users"`
	Inventory   []InventoryChangeRequest  `json:"inventory"`
	Combined    []CombinedEntry           `json:"combined"`
	Pages       map[Kind]PageState        `json:"pages"`
	Loading     map[Kind]bool             `json:"loading"`
	Highlighted map[Kind][]int64          `json:"highlighted"`
	InFlight    map[Kind][]int64          `json:"inFlight"`
	Failures    map[Kind]map[int64]string `json:"failures"`
	Reject      RejectDialog              `json:"reject"`
	Changes     ChangesDialog             `json:"changes"`
	Sales       SalesState                `json:"sales"`
}

// Session is the review screen of one connected dashboard: the board, both highlighters,
// the action dispatcher and the sales navigator, driven by renderer messages.
type Session struct {
	deps SessionDeps

	board      *Board
	group      *HighlightGroup
	registry   *ViewRegistry
	viewport   *WidthViewport
	users      *Highlighter
	inventory  *Highlighter
	dispatcher *Dispatcher
	sales      *SalesNavigator

	mu      sync.Mutex
	closed  bool
	actions sync.WaitGroup
}

func NewSession(cfg SessionConfig, deps SessionDeps) *Session {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = NewMarkupSanitizer()
	}

	s := &Session{
		deps:     deps,
		board:    NewBoard(cfg.PageSize),
		group:    NewHighlightGroup(),
		registry: NewViewRegistry(),
		viewport: NewWidthViewport(cfg.ViewportWidth),
	}
	scroller := sessionScroller{s: s}

	hdeps := HighlighterDeps{
		Board:      s.board,
		Group:      s.group,
		Registry:   s.registry,
		Viewport:   s.viewport,
		Scroller:   scroller,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
		OnConsumed: func(ctx string) { s.push(Frame{Type: FrameConsumed, Data: map[string]string{"context": ctx}}) },
	}
	hcfg := HighlighterConfig{Washout: cfg.Washout, ScrollDelay: cfg.ScrollDelay, Breakpoint: cfg.Breakpoint}

	hcfg.Kind, hcfg.Context = KindUser, "approvals.users"
	s.users = NewHighlighter(hcfg, hdeps)
	hcfg.Kind, hcfg.Context = KindInventory, "approvals.inventory"
	s.inventory = NewHighlighter(hcfg, hdeps)

	actions := deps.Actions
	actions.RefreshUsers = func(ctx context.Context) error { return s.loadUsers(ctx) }
	actions.RefreshInventory = func(ctx context.Context) error { return s.loadInventory(ctx) }
	actions.RefreshPending = actions.RefreshInventory
	s.dispatcher = NewDispatcher(actions, DispatcherOptions{
		Sanitizer: deps.Sanitizer,
		Logger:    deps.Logger,
		Observe:   deps.OnAction,
		Go:        s.spawn,
	})

	s.sales = NewSalesNavigator(SalesNavigatorOptions{
		PerPage:  cfg.SalesPerPage,
		Washout:  cfg.Washout,
		Clock:    deps.Clock,
		Scroller: scroller,
		Logger:   deps.Logger,
	})

	s.group.OnChange(func(kind Kind, ids []int64) {
		if ids == nil {
			ids = []int64{}
		}
		s.push(Frame{Type: FrameHighlight, Data: map[string]any{"kind": kind, "ids": ids}})
	})
	return s
}

func (s *Session) Board() *Board { return s.board }

// spawn runs a dispatcher action off the message loop: the busy state is pushed by Handle, and
// the settled state once the action returns. Actions on other IDs keep flowing meanwhile.
func (s *Session) spawn(run func()) {
	s.actions.Add(1)
	go func() {
		defer s.actions.Done()
		defer s.pushState()
		run()
	}()
}

// Wait blocks until every background action has settled.
func (s *Session) Wait() { s.actions.Wait() }

func (s *Session) Sales() *SalesNavigator { return s.sales }

// Close stops every timer; later messages, directives and pushes are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.users.Close()
	s.inventory.Close()
	s.sales.Close()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) push(f Frame) {
	if s.isClosed() || s.deps.Pusher == nil {
		return
	}
	if err := s.deps.Pusher.Push(f); err != nil {
		s.deps.Logger.Warnw("push frame failed", "type", f.Type, "error", err)
	}
}

// Load fetches every list and pushes the first state.
func (s *Session) Load(ctx context.Context) {
	if err := s.loadUsers(ctx); err != nil {
		s.deps.Logger.Errorw("load user requests failed", "error", err)
	}
	if err := s.loadInventory(ctx); err != nil {
		s.deps.Logger.Errorw("load inventory requests failed", "error", err)
	}
	if err := s.loadSales(ctx); err != nil {
		s.deps.Logger.Errorw("load sales failed", "error", err)
	}
	s.pushState()
}

func (s *Session) loadUsers(ctx context.Context) error {
	if s.deps.Source == nil {
		s.board.SetLoading(KindUser, false)
		return nil
	}
	s.board.SetLoading(KindUser, true)
	reqs, err := s.deps.Source.UserRequests(ctx)
	if err != nil {
		s.board.SetLoading(KindUser, false)
		s.users.Resume()
		return fmt.Errorf("load user requests: %w", err)
	}
	s.board.SetUsers(reqs)
	s.report(KindUser, s.users.Resume())
	return nil
}

func (s *Session) loadInventory(ctx context.Context) error {
	if s.deps.Source == nil {
		s.board.SetLoading(KindInventory, false)
		return nil
	}
	s.board.SetLoading(KindInventory, true)
	reqs, err := s.deps.Source.InventoryRequests(ctx)
	if err != nil {
		s.board.SetLoading(KindInventory, false)
		s.inventory.Resume()
		return fmt.Errorf("load inventory requests: %w", err)
	}
	s.board.SetInventory(reqs)
	s.report(KindInventory, s.inventory.Resume())
	return nil
}

func (s *Session) loadSales(ctx context.Context) error {
	if s.deps.Source == nil {
		return nil
	}
	rows, err := s.deps.Source.Sales(ctx)
	if err != nil {
		return fmt.Errorf("load sales: %w", err)
	}
	s.sales.SetSales(rows)
	return nil
}

func (s *Session) report(kind Kind, o Outcome) {
	if o != OutcomeIgnored && s.deps.OnDirective != nil {
		s.deps.OnDirective(kind, o)
	}
}

// Directive hands an external highlight directive to both highlighters; at most one acts on it.
func (s *Session) Directive(d Directive) {
	if s.isClosed() {
		return
	}
	s.report(KindUser, s.users.Process(&d))
	s.report(KindInventory, s.inventory.Process(&d))
	s.pushState()
}

// NavigateSale moves the sales table to a sale.
func (s *Session) NavigateSale(id int64) {
	if s.isClosed() {
		return
	}
	s.sales.Navigate(id)
	s.pushState()
}

type kindID struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

type layoutMsg struct {
	Layout     Layout               `json:"layout"`
	Kind       Kind                 `json:"kind"`
	Rows       map[int64]ViewHandle `json:"rows"`
	Containers []ScrollContainer    `json:"containers"`
}

// Handle applies one renderer message and pushes the resulting state.
func (s *Session) Handle(ctx context.Context, msg Message) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if err := s.handle(ctx, msg); err != nil {
		return err
	}
	s.pushState()
	return nil
}

func (s *Session) handle(ctx context.Context, msg Message) error {
	switch msg.Type {
	case "search":
		var p struct {
			Term string `json:"term"`
		}
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.board.SetSearch(strings.TrimSpace(s.deps.Sanitizer.Sanitize(p.Term)))
	case "page":
		var p struct {
			Kind Kind `json:"kind"`
			Page int  `json:"page"`
		}
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.board.SetPage(p.Kind, p.Page)
	case "viewport":
		var p struct {
			Width int `json:"width"`
		}
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.viewport.SetWidth(p.Width)
	case "layout":
		var p layoutMsg
		if err := decode(msg, &p); err != nil {
			return err
		}
		for _, c := range p.Containers {
			s.registry.SetContainer(c)
		}
		if p.Kind == KindSale {
			s.sales.Render(p.Rows)
		} else {
			s.registry.Replace(p.Layout, p.Kind, p.Rows)
		}
	case "approve":
		var p kindID
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.dispatcher.Approve(ctx, p.Kind, p.ID)
	case "reject.open":
		var p kindID
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.dispatcher.OpenReject(p.Kind, p.ID)
	case "reject.reason":
		var p struct {
			Reason string `json:"reason"`
		}
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.dispatcher.SetRejectReason(p.Reason)
	case "reject.cancel":
		s.dispatcher.CancelReject()
	case "reject.confirm":
		s.dispatcher.ConfirmReject(ctx)
	case "changes.open":
		var p struct {
			ID         int64  `json:"id"`
			ChangeType string `json:"changeType"`
		}
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.dispatcher.OpenRequestChanges(p.ID, p.ChangeType)
	case "changes.type":
		var p struct {
			ChangeType string `json:"changeType"`
		}
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.dispatcher.SetChangeType(p.ChangeType)
	case "changes.comment":
		var p struct {
			Comment string `json:"comment"`
		}
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.dispatcher.SetChangeComment(p.Comment)
	case "changes.cancel":
		s.dispatcher.CancelRequestChanges()
	case "changes.confirm":
		s.dispatcher.ConfirmRequestChanges(ctx)
	case "sales.filter":
		var p struct {
			Status string `json:"status"`
			Search string `json:"search"`
		}
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.sales.ChangeFilter(p.Status, s.deps.Sanitizer.Sanitize(p.Search), UserInitiatedFilterChange)
	case "sales.page":
		var p struct {
			Page int `json:"page"`
		}
		if err := decode(msg, &p); err != nil {
			return err
		}
		s.sales.SetPage(p.Page)
	case "refresh":
		s.Load(ctx)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func decode(msg Message, v any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("message %q: missing data", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("message %q: %w", msg.Type, err)
	}
	return nil
}

// Snapshot builds the current state.
func (s *Session) Snapshot() State {
	st := State{
		Search:      s.board.Search(),
		Users:       s.board.PendingUsers(),
		Inventory:   s.board.PendingInventory(),
		Combined:    s.board.Combined(),
		Pages:       make(map[Kind]PageState, 2),
		Loading:     make(map[Kind]bool, 2),
		Highlighted: make(map[Kind][]int64, 2),
		InFlight:    make(map[Kind][]int64, 2),
		Failures:    make(map[Kind]map[int64]string, 2),
		Reject:      s.dispatcher.RejectDialogState(),
		Changes:     s.dispatcher.ChangesDialogState(),
	}
	for _, kind := range []Kind{KindUser, KindInventory} {
		st.Pages[kind] = PageState{
			Page:  s.board.Page(kind),
			Count: s.board.PageCount(kind),
			IDs:   s.board.PageIDs(kind),
		}
		st.Loading[kind] = s.board.Loading(kind)
		st.Highlighted[kind] = s.group.IDs(kind)
		st.InFlight[kind] = s.dispatcher.InFlightIDs(kind)
		st.Failures[kind] = s.dispatcher.Failures(kind)
	}
	hl, _ := s.sales.Highlighted()
	st.Sales = SalesState{
		Page:        s.sales.Page(),
		IDs:         s.sales.PageIDs(),
		State:       s.sales.State(),
		Highlighted: hl,
	}
	return st
}

func (s *Session) pushState() {
	s.push(Frame{Type: FrameState, Data: s.Snapshot()})
}

type sessionScroller struct {
	s *Session
}

func (sc sessionScroller) ScrollContainer(containerID string, top float64) {
	sc.s.push(Frame{Type: FrameScroll, Data: ScrollCommand{Container: containerID, Top: top}})
}

func (sc sessionScroller) ScrollIntoView(layout Layout, kind Kind, id int64, block string) {
	sc.s.push(Frame{Type: FrameScroll, Data: ScrollCommand{Layout: layout, Kind: kind, ID: id, Block: block}})
}
