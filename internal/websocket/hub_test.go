package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"retailops/internal/dashboard"
	"retailops/internal/events"
	"retailops/internal/middleware"
	"retailops/internal/model"
	"retailops/internal/review"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	gws "github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "hub-secret"

type fakeBackend struct {
	mu       sync.Mutex
	approved []int64
	actor    string
	roles    []string
	// block holds the approval of user 5 until closed.
	block chan struct{}
}

func (b *fakeBackend) UserRequests(context.Context) ([]review.UserAccountRequest, error) {
	return []review.UserAccountRequest{
		{UserID: 5, FullName: "Ann Lee", Branch: "North", Role: []string{"staff"}, RequestStatus: "pending", CreatedAt: "2025-03-01T10:00:00Z"},
		{UserID: 6, FullName: "Bo Park", Branch: "South", Role: []string{"staff"}, RequestStatus: "pending", CreatedAt: "2025-03-02T10:00:00Z"},
	}, nil
}

func (b *fakeBackend) InventoryRequests(context.Context) ([]review.InventoryChangeRequest, error) {
	return nil, nil
}

func (b *fakeBackend) Sales(context.Context) ([]review.SaleRow, error) {
	return []review.SaleRow{{ID: 1, Status: "completed"}}, nil
}

// Actions mirrors the service bridge: only owners may decide account requests.
func (b *fakeBackend) Actions(actor, role string) review.Callbacks {
	b.mu.Lock()
	b.roles = append(b.roles, role)
	block := b.block
	b.mu.Unlock()
	if role != middleware.RoleOwner {
		return review.Callbacks{}
	}
	return review.Callbacks{
		ApproveAccount: func(_ context.Context, id int64) error {
			if id == 5 && block != nil {
				<-block
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			b.approved = append(b.approved, id)
			b.actor = actor
			return nil
		},
	}
}

func (b *fakeBackend) approvedIDs() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int64(nil), b.approved...)
}

func signed(t *testing.T, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "1",
		"name": "Olga",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

type harness struct {
	hub     *Hub
	bus     *events.EventBus
	server  *httptest.Server
	backend *fakeBackend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := &fakeBackend{}
	fetch := func(_ context.Context, f dashboard.Filter) (dashboard.Charts, error) {
		return dashboard.Charts{
			Points:   []dashboard.Point{{Label: f.Branch, Value: decimal.NewFromInt(3), Count: 1}},
			Branches: []model.BranchRanking{{BranchName: f.Branch, Revenue: decimal.NewFromInt(3), Transactions: 1}},
		}, nil
	}
	hub := NewHub(Options{
		Session: review.SessionConfig{
			PageSize:      10,
			SalesPerPage:  10,
			Washout:       time.Second,
			ScrollDelay:   10 * time.Millisecond,
			Breakpoint:    768,
			ViewportWidth: 1280,
		},
		Debounce:     5 * time.Millisecond,
		AllowedRoles: []string{middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleManager},
	}, Deps{
		Backend: backend,
		Fetcher: fetch,
		Auth:    middleware.NewAuthenticator(secret),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	bus := events.NewEventBus(nil)
	hub.Subscribe(bus)

	r := gin.New()
	r.GET("/ws", hub.ServeWs)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &harness{hub: hub, bus: bus, server: srv, backend: backend}
}

func (h *harness) dial(t *testing.T, role string) (*gws.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	if role != "" {
		url += "?token=" + signed(t, role)
	}
	return gws.DefaultDialer.Dial(url, nil)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// next reads frames until one of the wanted type arrives.
func next(t *testing.T, conn *gws.Conn, want string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == want {
			return f
		}
	}
}

func TestServeWs_Rejects(t *testing.T) {
	h := newHarness(t)

	_, resp, err := h.dial(t, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = h.dial(t, middleware.RoleStaff)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_SessionLifecycle(t *testing.T) {
	h := newHarness(t)

	conn, _, err := h.dial(t, middleware.RoleOwner)
	require.NoError(t, err)
	defer conn.Close()

	var st struct {
		Users []review.UserAccountRequest `json:"users"`
	}
	require.NoError(t, json.Unmarshal(next(t, conn, review.FrameState).Data, &st))
	require.Len(t, st.Users, 2)
	assert.Equal(t, 1, h.hub.Count())

	// directive from the bus reaches the session
	require.NoError(t, h.bus.Publish(context.Background(), events.NewEvent(events.TopicDirectiveHighlight, events.DirectiveEvent{
		Directive: review.Directive{Type: review.DirectiveApprovalHighlight, FocusKind: review.KindUser, TargetIDs: []any{5}, TriggeredAt: 1},
	})))
	var hl struct {
		Kind review.Kind `json:"kind"`
		IDs  []int64     `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(next(t, conn, review.FrameHighlight).Data, &hl))
	assert.Equal(t, review.KindUser, hl.Kind)
	assert.Equal(t, []int64{5}, hl.IDs)

	// approve through the renderer protocol runs the backend action as the token's actor
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "approve", "data": map[string]any{"kind": "user", "id": 5}}))
	require.Eventually(t, func() bool {
		h.backend.mu.Lock()
		defer h.backend.mu.Unlock()
		return len(h.backend.approved) == 1
	}, 2*time.Second, 10*time.Millisecond)
	h.backend.mu.Lock()
	assert.Equal(t, []int64{5}, h.backend.approved)
	assert.Equal(t, "Olga", h.backend.actor)
	h.backend.mu.Unlock()

	// dashboard filters are debounced into a dashboard frame
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "dashboard.filter", "data": map[string]any{"branch": "North"}}))
	var res dashboard.Result
	require.NoError(t, json.Unmarshal(next(t, conn, FrameDashboard).Data, &res))
	require.Len(t, res.Points, 1)
	assert.Equal(t, "North", res.Points[0].Label)
	require.Len(t, res.Branches, 1)
	assert.Equal(t, "North", res.Branches[0].BranchName)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))
	next(t, conn, FrameError)

	require.NoError(t, h.bus.Publish(context.Background(), events.NewEvent(events.TopicValidityUpdated, events.ValidityEvent{Branch: "North", Expired: 2})))
	var v events.ValidityEvent
	require.NoError(t, json.Unmarshal(next(t, conn, FrameValidity).Data, &v))
	assert.EqualValues(t, 2, v.Expired)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type stateFrame struct {
	InFlight map[review.Kind][]int64 `json:"inFlight"`
}

// nextState reads state frames until one satisfies ok.
func nextState(t *testing.T, conn *gws.Conn, ok func(stateFrame) bool) stateFrame {
	t.Helper()
	for {
		var st stateFrame
		require.NoError(t, json.Unmarshal(next(t, conn, review.FrameState).Data, &st))
		if ok(st) {
			return st
		}
	}
}

func TestHub_ActionsRunOffTheReadLoop(t *testing.T) {
	h := newHarness(t)
	h.backend.block = make(chan struct{})

	conn, _, err := h.dial(t, middleware.RoleOwner)
	require.NoError(t, err)
	defer conn.Close()
	next(t, conn, review.FrameState)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "approve", "data": map[string]any{"kind": "user", "id": 5}}))
	nextState(t, conn, func(st stateFrame) bool {
		return assert.ObjectsAreEqual([]int64{5}, st.InFlight[review.KindUser])
	})

	// 6 is decided while 5 is still waiting on the backend
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "approve", "data": map[string]any{"kind": "user", "id": 6}}))
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int64{6}, h.backend.approvedIDs())
	}, 2*time.Second, 10*time.Millisecond)

	close(h.backend.block)
	require.Eventually(t, func() bool { return len(h.backend.approvedIDs()) == 2 }, 2*time.Second, 10*time.Millisecond)
	nextState(t, conn, func(st stateFrame) bool { return len(st.InFlight[review.KindUser]) == 0 })
}

func TestHub_ManagerCannotDecideAccounts(t *testing.T) {
	h := newHarness(t)

	conn, _, err := h.dial(t, middleware.RoleManager)
	require.NoError(t, err)
	defer conn.Close()
	next(t, conn, review.FrameState)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "approve", "data": map[string]any{"kind": "user", "id": 5}}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))
	next(t, conn, FrameError)

	assert.Empty(t, h.backend.approvedIDs())
	h.backend.mu.Lock()
	assert.Equal(t, []string{middleware.RoleManager}, h.backend.roles)
	h.backend.mu.Unlock()
}
