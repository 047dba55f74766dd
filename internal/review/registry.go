package review

import "sync"

// Layout selects which rendered representation of a list is live: the card list on narrow
// screens or the table on wide ones.
type Layout string

const (
	LayoutDesktop Layout = "desktop"
	LayoutMobile  Layout = "mobile"
)

// ViewHandle is the rendering layer's opaque token for one rendered row.
type ViewHandle struct {
	OffsetTop   float64 `json:"offsetTop"`
	ContainerID string  `json:"containerId,omitempty"`
}

// ScrollContainer describes the scrollable element a row lives in.
type ScrollContainer struct {
	ID           string  `json:"id"`
	ClientHeight float64 `json:"clientHeight"`
}

type rowKey struct {
	layout Layout
	kind   Kind
	id     int64
}

// ViewRegistry maps entity IDs to the handles of their rendered rows. The renderer populates
// it after every render and navigation code only reads from it.
type ViewRegistry struct {
	mu         sync.RWMutex
	rows       map[rowKey]ViewHandle
	containers map[string]ScrollContainer
}

func NewViewRegistry() *ViewRegistry {
	return &ViewRegistry{
		rows:       make(map[rowKey]ViewHandle),
		containers: make(map[string]ScrollContainer),
	}
}

func (r *ViewRegistry) Register(layout Layout, kind Kind, id int64, h ViewHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[rowKey{layout, kind, id}] = h
}

// Replace drops every handle of one layout/kind and installs rows in their place.
func (r *ViewRegistry) Replace(layout Layout, kind Kind, rows map[int64]ViewHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.rows {
		if k.layout == layout && k.kind == kind {
			delete(r.rows, k)
		}
	}
	for id, h := range rows {
		r.rows[rowKey{layout, kind, id}] = h
	}
}

func (r *ViewRegistry) Lookup(layout Layout, kind Kind, id int64) (ViewHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.rows[rowKey{layout, kind, id}]
	return h, ok
}

func (r *ViewRegistry) SetContainer(c ScrollContainer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[c.ID] = c
}

func (r *ViewRegistry) Container(id string) (ScrollContainer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[id]
	return c, ok
}
