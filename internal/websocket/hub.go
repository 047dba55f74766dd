// Package websocket connects dashboards to their review sessions. Every client gets its own
// review.Session and dashboard.Loader; the hub fans bus events out to them.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"retailops/internal/dashboard"
	"retailops/internal/events"
	"retailops/internal/metrics"
	"retailops/internal/middleware"
	"retailops/internal/review"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 256
)

// Frame types pushed by the hub on top of the session frames.
const (
	FrameDashboard = "dashboard"
	FrameValidity  = "validity"
	FrameError     = "error"
)

const msgDashboardFilter = "dashboard.filter"

var ErrSlowClient = errors.New("client send buffer full")

// Backend feeds review sessions and carries out their decisions on behalf of one actor. The
// callbacks it returns enforce what role may decide; nil callbacks leave the action unavailable.
type Backend interface {
	review.Source
	Actions(actor, role string) review.Callbacks
}

type Options struct {
	Session        review.SessionConfig
	Debounce       time.Duration
	Window         int
	AllowedOrigins []string
	// AllowedRoles may open a review session; empty allows every authenticated role.
	AllowedRoles []string
}

type Deps struct {
	Backend Backend
	Fetcher dashboard.Fetcher
	Auth    *middleware.Authenticator
	Clock   clock.Clock
	Logger  *zap.SugaredLogger
}

// Client represents a single connected WebSocket client
type Client struct {
	ID    string
	Actor string
	Role  string

	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	session *review.Session
	loader  *dashboard.Loader
}

// Push implements review.Pusher. Frames are dropped once the client is closed.
func (c *Client) Push(f review.Frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return c.enqueue(raw)
}

func (c *Client) enqueue(raw []byte) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	select {
	case c.send <- raw:
		return nil
	default:
		return ErrSlowClient
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.session.Close()
		if c.loader != nil {
			c.loader.Close()
		}
	})
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	opts     Options
	deps     Deps
	upgrader websocket.Upgrader

	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub(opts Options, deps Deps) *Hub {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	h := &Hub{
		opts:       opts,
		deps:       deps,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin allows every origin when none are configured.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Run starts the core dispatch loop and returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			metrics.WebsocketClients.Inc()
			h.deps.Logger.Infow("websocket client connected", "client", client.ID, "actor", client.Actor)
		case client := <-h.unregister:
			h.drop(client)
		case message := <-h.broadcast:
			for _, client := range h.snapshot() {
				if err := client.enqueue(message); err != nil {
					h.deps.Logger.Warnw("dropping slow websocket client", "client", client.ID)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() { close(h.done) })
	for _, client := range h.snapshot() {
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	if ok {
		metrics.WebsocketClients.Dec()
		h.deps.Logger.Infow("websocket client disconnected", "client", client.ID)
	}
	client.close()
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a frame to every client. It is a no-op once the hub has stopped.
func (h *Hub) Broadcast(f review.Frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	select {
	case h.broadcast <- raw:
	case <-h.done:
	}
	return nil
}

// Subscribe routes bus topics to the connected sessions.
func (h *Hub) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.TopicDirectiveHighlight, func(_ context.Context, e events.Event) error {
		ev, ok := e.Payload().(events.DirectiveEvent)
		if !ok {
			return fmt.Errorf("unexpected directive payload %T", e.Payload())
		}
		for _, c := range h.snapshot() {
			c.session.Directive(ev.Directive)
		}
		return nil
	})
	bus.Subscribe(events.TopicSaleNavigate, func(_ context.Context, e events.Event) error {
		ev, ok := e.Payload().(events.SaleNavigateEvent)
		if !ok {
			return fmt.Errorf("unexpected navigate payload %T", e.Payload())
		}
		for _, c := range h.snapshot() {
			c.session.NavigateSale(ev.SaleID)
		}
		return nil
	})

	reload := func(ctx context.Context, _ events.Event) error {
		for _, c := range h.snapshot() {
			c.session.Load(ctx)
		}
		return nil
	}
	bus.Subscribe(events.TopicRequestCreated, reload)
	bus.Subscribe(events.TopicRequestDecided, reload)
	bus.Subscribe(events.TopicSaleRecorded, reload)

	bus.Subscribe(events.TopicValidityUpdated, func(_ context.Context, e events.Event) error {
		return h.Broadcast(review.Frame{Type: FrameValidity, Data: e.Payload()})
	})
}

func (h *Hub) roleAllowed(role string) bool {
	if len(h.opts.AllowedRoles) == 0 {
		return true
	}
	for _, r := range h.opts.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ServeWs authenticates the token query parameter (or access_token cookie) and upgrades.
func (h *Hub) ServeWs(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		raw, _ = c.Cookie("access_token")
	}
	p, err := h.deps.Auth.ParseToken(raw)
	if err != nil {
		h.deps.Logger.Warnw("websocket connection rejected", "error", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if !h.roleAllowed(p.Role) {
		h.deps.Logger.Warnw("websocket connection rejected: inadequate permissions", "role", p.Role)
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.deps.Logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	client := h.newClient(conn, p.Actor(), p.Role)
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) newClient(conn *websocket.Conn, actor, role string) *Client {
	c := &Client{
		ID:    uuid.NewString(),
		Actor: actor,
		Role:  role,
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}
	log := h.deps.Logger.With("client", c.ID, "actor", actor, "role", role)

	deps := review.SessionDeps{
		Pusher: c,
		Clock:  h.deps.Clock,
		Logger: log,
		OnDirective: func(kind review.Kind, o review.Outcome) {
			metrics.DirectivesTotal.WithLabelValues(string(kind), string(o)).Inc()
		},
		OnAction: func(kind review.Kind, action string, o review.ActionOutcome) {
			metrics.ReviewActionsTotal.WithLabelValues(string(kind), action, string(o)).Inc()
		},
	}
	if h.deps.Backend != nil {
		deps.Source = h.deps.Backend
		deps.Actions = h.deps.Backend.Actions(actor, role)
	}
	c.session = review.NewSession(h.opts.Session, deps)

	if h.deps.Fetcher != nil {
		c.loader = dashboard.NewLoader(h.deps.Fetcher, dashboard.Options{
			Debounce: h.opts.Debounce,
			Window:   h.opts.Window,
			Clock:    h.deps.Clock,
			Logger:   log,
			OnResult: func(r dashboard.Result) {
				_ = c.Push(review.Frame{Type: FrameDashboard, Data: r})
			},
		})
	}
	return c
}

func (c *Client) remove() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
		c.close()
	}
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump loads the session and feeds renderer messages to it until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.remove()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()
	c.session.Load(ctx)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.deps.Logger.Warnw("websocket read failed", "client", c.ID, "error", err)
			}
			return
		}
		var msg review.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			err = fmt.Errorf("malformed message: %w", err)
			c.reportError("", err)
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			c.reportError(msg.Type, err)
		}
	}
}

func (c *Client) reportError(msgType string, err error) {
	_ = c.Push(review.Frame{Type: FrameError, Data: map[string]string{"type": msgType, "error": err.Error()}})
}

func (c *Client) handle(ctx context.Context, msg review.Message) error {
	if msg.Type != msgDashboardFilter {
		return c.session.Handle(ctx, msg)
	}
	if c.loader == nil {
		return errors.New("dashboard is not available")
	}
	var f dashboard.Filter
	if err := json.Unmarshal(msg.Data, &f); err != nil {
		return fmt.Errorf("message %q: %w", msg.Type, err)
	}
	c.loader.Change(f)
	return nil
}
