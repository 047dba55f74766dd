package review

import "sync/atomic"

// Scroller performs the visual scroll on the rendering side.
type Scroller interface {
	// ScrollContainer sets the scroll offset of a registered container.
	ScrollContainer(containerID string, top float64)
	// ScrollIntoView asks the renderer to bring a row into view natively.
	ScrollIntoView(layout Layout, kind Kind, id int64, block string)
}

// Viewport answers media queries about the current screen.
type Viewport interface {
	// MaxWidth reports whether the viewport matches (max-width: px).
	MaxWidth(px int) bool
}

// WidthViewport is a Viewport backed by a reported pixel width.
type WidthViewport struct {
	width atomic.Int64
}

func NewWidthViewport(width int) *WidthViewport {
	v := &WidthViewport{}
	v.width.Store(int64(width))
	return v
}

func (v *WidthViewport) SetWidth(width int) { v.width.Store(int64(width)) }

func (v *WidthViewport) MaxWidth(px int) bool { return v.width.Load() <= int64(px) }

// layoutFor picks the mobile ref collection when the viewport is at or under the breakpoint.
func layoutFor(v Viewport, breakpoint int) Layout {
	if v != nil && v.MaxWidth(breakpoint) {
		return LayoutMobile
	}
	return LayoutDesktop
}

// scrollOffset places the row roughly one third from the top of its container.
func scrollOffset(h ViewHandle, c ScrollContainer) float64 {
	top := h.OffsetTop - c.ClientHeight/3
	if top < 0 {
		return 0
	}
	return top
}

// scrollTo scrolls the row's container, falling back to a native centered scroll when the
// container relationship is unknown.
func scrollTo(s Scroller, reg *ViewRegistry, layout Layout, kind Kind, id int64) bool {
	h, ok := reg.Lookup(layout, kind, id)
	if !ok {
		return false
	}
	if c, ok := reg.Container(h.ContainerID); ok && h.ContainerID != "" {
		s.ScrollContainer(c.ID, scrollOffset(h, c))
		return true
	}
	s.ScrollIntoView(layout, kind, id, "center")
	return true
}
