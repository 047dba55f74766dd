package review

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu        sync.Mutex
	users     []UserAccountRequest
	inventory []InventoryChangeRequest
	sales     []SaleRow
	userLoads int
	failUsers error
}

func (s *stubSource) UserRequests(ctx context.Context) ([]UserAccountRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLoads++
	if s.failUsers != nil {
		return nil, s.failUsers
	}
	return s.users, nil
}

func (s *stubSource) InventoryRequests(ctx context.Context) ([]InventoryChangeRequest, error) {
	return s.inventory, nil
}

func (s *stubSource) Sales(ctx context.Context) ([]SaleRow, error) {
	return s.sales, nil
}

func (s *stubSource) loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userLoads
}

type framePusher struct {
	mu     sync.Mutex
	frames []Frame
}

func (p *framePusher) Push(f Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, f)
	return nil
}

func (p *framePusher) ofType(typ string) []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Frame
	for _, f := range p.frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (p *framePusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

func message(t *testing.T, typ string, data any) Message {
	t.Helper()
	msg := Message{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		msg.Data = raw
	}
	return msg
}

func newTestSession(src *stubSource, actions Callbacks) (*Session, *framePusher, *clock.Mock) {
	pusher := &framePusher{}
	mock := clock.NewMock()
	s := NewSession(SessionConfig{PageSize: 2, SalesPerPage: 5, ViewportWidth: 1280}, SessionDeps{
		Source:  src,
		Actions: actions,
		Pusher:  pusher,
		Clock:   mock,
	})
	return s, pusher, mock
}

func TestSession_DirectiveBeforeLoadIsAppliedAfterLoad(t *testing.T) {
	src := &stubSource{users: fixtureUsers(), inventory: fixtureInventory(), sales: fixtureSales(12)}
	s, pusher, mock := newTestSession(src, Callbacks{})
	defer s.Close()

	s.Directive(Directive{Type: DirectiveApprovalHighlight, FocusKind: KindUser, TargetIDs: []any{float64(3)}, TriggeredAt: 100})
	assert.Empty(t, pusher.ofType(FrameConsumed))

	s.Load(context.Background())
	assert.Len(t, pusher.ofType(FrameConsumed), 1)

	st := s.Snapshot()
	assert.Equal(t, []int64{3}, st.Highlighted[KindUser])
	assert.Equal(t, []int64{}, st.Highlighted[KindInventory])
	assert.Equal(t, 2, st.Pages[KindUser].Page)
	assert.Len(t, st.Combined, 5)

	require.NoError(t, s.Handle(context.Background(), message(t, "layout", layoutMsg{
		Layout:     LayoutDesktop,
		Kind:       KindUser,
		Rows:       map[int64]ViewHandle{3: {OffsetTop: 240, ContainerID: "approvals"}},
		Containers: []ScrollContainer{{ID: "approvals", ClientHeight: 600}},
	})))

	mock.Add(DefaultScrollDelay)
	require.Eventually(t, func() bool { return len(pusher.ofType(FrameScroll)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ScrollCommand{Container: "approvals", Top: 40}, pusher.ofType(FrameScroll)[0].Data)

	mock.Add(DefaultWashout)
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Highlighted[KindUser]) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSession_ApproveRefreshesUsers(t *testing.T) {
	src := &stubSource{users: fixtureUsers()}
	var approved []int64
	s, _, _ := newTestSession(src, Callbacks{
		ApproveAccount: func(ctx context.Context, id int64) error {
			approved = append(approved, id)
			return nil
		},
	})
	defer s.Close()
	s.Load(context.Background())
	require.Equal(t, 1, src.loads())

	require.NoError(t, s.Handle(context.Background(), message(t, "approve", kindID{Kind: KindUser, ID: 2})))
	s.Wait()
	assert.Equal(t, []int64{2}, approved)
	assert.Equal(t, 2, src.loads())
	assert.Empty(t, s.Snapshot().InFlight[KindUser])
}

func TestSession_ActionInFlightIsPushedAndOtherIDsProceed(t *testing.T) {
	src := &stubSource{users: fixtureUsers()}
	release := make(chan struct{})
	var log callLog
	s, pusher, _ := newTestSession(src, Callbacks{
		ApproveAccount: func(ctx context.Context, id int64) error {
			if id == 1 {
				<-release
			}
			log.add("approve")
			return nil
		},
	})
	defer s.Close()
	s.Load(context.Background())
	ctx := context.Background()

	require.NoError(t, s.Handle(ctx, message(t, "approve", kindID{Kind: KindUser, ID: 1})))
	states := pusher.ofType(FrameState)
	require.NotEmpty(t, states)
	assert.Equal(t, []int64{1}, states[len(states)-1].Data.(State).InFlight[KindUser])

	require.NoError(t, s.Handle(ctx, message(t, "approve", kindID{Kind: KindUser, ID: 2})))
	require.Eventually(t, func() bool { return len(log.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{1}, s.Snapshot().InFlight[KindUser], "approve of 2 settled while 1 is blocked")

	close(release)
	s.Wait()
	assert.Len(t, log.all(), 2)
	assert.Empty(t, s.Snapshot().InFlight[KindUser])
}

func TestSession_RejectFlowAndFailure(t *testing.T) {
	src := &stubSource{users: fixtureUsers()}
	s, _, _ := newTestSession(src, Callbacks{
		RejectAccount: func(ctx context.Context, id int64, reason string) error {
			return errors.New("timeout")
		},
	})
	defer s.Close()
	s.Load(context.Background())
	ctx := context.Background()

	require.NoError(t, s.Handle(ctx, message(t, "reject.open", kindID{Kind: KindUser, ID: 1})))
	require.NoError(t, s.Handle(ctx, message(t, "reject.reason", map[string]string{"reason": "<i>spam</i>"})))
	assert.Equal(t, "spam", s.Snapshot().Reject.Reason)

	require.NoError(t, s.Handle(ctx, message(t, "reject.confirm", nil)))
	s.Wait()
	st := s.Snapshot()
	assert.False(t, st.Reject.Open)
	assert.Empty(t, st.InFlight[KindUser])
	assert.Equal(t, "timeout", st.Failures[KindUser][1])
}

func TestSession_SearchResetsPages(t *testing.T) {
	src := &stubSource{users: fixtureUsers(), inventory: fixtureInventory()}
	s, _, _ := newTestSession(src, Callbacks{})
	defer s.Close()
	s.Load(context.Background())
	ctx := context.Background()

	require.NoError(t, s.Handle(ctx, message(t, "page", map[string]any{"kind": KindUser, "page": 2})))
	require.Equal(t, 2, s.Board().Page(KindUser))

	require.NoError(t, s.Handle(ctx, message(t, "search", map[string]string{"term": "  North "})))
	st := s.Snapshot()
	assert.Equal(t, "North", st.Search)
	assert.Equal(t, 1, st.Pages[KindUser].Page)
	assert.Len(t, st.Users, 2)
}

func TestSession_SaleNavigation(t *testing.T) {
	src := &stubSource{sales: fixtureSales(12)}
	s, _, _ := newTestSession(src, Callbacks{})
	defer s.Close()
	s.Load(context.Background())

	s.NavigateSale(9)
	assert.Equal(t, NavHighlightScheduled, s.Snapshot().Sales.State)
	assert.Equal(t, 2, s.Snapshot().Sales.Page)

	require.NoError(t, s.Handle(context.Background(), message(t, "layout", layoutMsg{
		Kind: KindSale,
		Rows: map[int64]ViewHandle{9: {OffsetTop: 10}},
	})))
	st := s.Snapshot()
	assert.Equal(t, NavHighlightActive, st.Sales.State)
	assert.Equal(t, int64(9), st.Sales.Highlighted)
}

func TestSession_ClosedDropsEverything(t *testing.T) {
	src := &stubSource{users: fixtureUsers()}
	s, pusher, _ := newTestSession(src, Callbacks{})
	s.Load(context.Background())
	before := pusher.count()

	s.Close()
	assert.ErrorIs(t, s.Handle(context.Background(), message(t, "refresh", nil)), ErrSessionClosed)
	s.Directive(Directive{Type: DirectiveApprovalHighlight, FocusKind: KindUser, TargetIDs: []any{1}, TriggeredAt: 1})
	assert.Equal(t, before, pusher.count())
}

func TestSession_RejectsUnknownMessages(t *testing.T) {
	s, _, _ := newTestSession(&stubSource{}, Callbacks{})
	defer s.Close()

	assert.Error(t, s.Handle(context.Background(), message(t, "dance", nil)))
	assert.Error(t, s.Handle(context.Background(), message(t, "approve", nil)))
}

func TestSession_UserLoadFailureKeepsPreviousList(t *testing.T) {
	src := &stubSource{users: fixtureUsers()}
	s, _, _ := newTestSession(src, Callbacks{})
	defer s.Close()
	s.Load(context.Background())

	src.mu.Lock()
	src.failUsers = errors.New("db down")
	src.mu.Unlock()

	require.NoError(t, s.Handle(context.Background(), message(t, "refresh", nil)))
	assert.False(t, s.Board().Loading(KindUser))
	assert.Len(t, s.Snapshot().Users, 3)
}
