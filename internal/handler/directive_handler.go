package handler

import (
	"context"
	"net/http"
	"strings"

	"retailops/internal/events"
	"retailops/internal/middleware"
	"retailops/internal/review"
	"retailops/internal/service"
	"retailops/pkg/response"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
)

// DirectiveHandler lets assistants and other screens steer connected review boards.
type DirectiveHandler struct {
	bus   service.Publisher
	auth  *middleware.Authenticator
	clock clock.Clock
}

func NewDirectiveHandler(bus service.Publisher, auth *middleware.Authenticator, clk clock.Clock) *DirectiveHandler {
	if clk == nil {
		clk = clock.New()
	}
	return &DirectiveHandler{bus: bus, auth: auth, clock: clk}
}

func (h *DirectiveHandler) RegisterRoutes(router *gin.RouterGroup) {
	directives := router.Group("/api/directives")
	directives.Use(h.auth.RequireRole(middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleManager))
	{
		directives.POST("", h.Highlight)
		directives.POST("/sales/:id", h.NavigateSale)
	}
}

type directiveAccepted struct {
	Type        string      `json:"type"`
	FocusKind   review.Kind `json:"focusKind"`
	TriggeredAt int64       `json:"triggeredAt"`
}

// Highlight broadcasts a highlight directive
// @Summary      Publish highlight directive
// @Description  Every connected review board brings the targeted requests into view. triggeredAt defaults to now (unix ms).
// @Tags         directives
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      review.Directive  true  "Directive"
// @Success      202      {object}  response.Response{data=directiveAccepted}
// @Failure      400      {object}  response.Response
// @Router       /api/directives [post]
func (h *DirectiveHandler) Highlight(c *gin.Context) {
	var d review.Directive
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, err.Error())
		return
	}
	if d.Type == "" {
		d.Type = review.DirectiveApprovalHighlight
	}
	d.FocusKind = review.Kind(strings.ToLower(string(d.FocusKind)))
	if d.FocusKind != review.KindUser && d.FocusKind != review.KindInventory {
		badRequest(c, "focusKind must be user or inventory")
		return
	}
	if d.TriggeredAt == 0 {
		d.TriggeredAt = h.clock.Now().UnixMilli()
	}

	ev := events.NewEvent(events.TopicDirectiveHighlight, events.DirectiveEvent{Directive: d})
	if err := h.bus.Publish(context.WithoutCancel(c.Request.Context()), ev); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response.Success(http.StatusAccepted, directiveAccepted{
		Type:        d.Type,
		FocusKind:   d.FocusKind,
		TriggeredAt: d.TriggeredAt,
	}))
}

// NavigateSale asks every sales table to page to and flash one sale
// @Summary      Navigate to sale
// @Tags         directives
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Sale ID"
// @Success      202  {object}  response.Response{data=events.SaleNavigateEvent}
// @Failure      400  {object}  response.Response
// @Router       /api/directives/sales/{id} [post]
func (h *DirectiveHandler) NavigateSale(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	payload := events.SaleNavigateEvent{SaleID: int64(id)}
	if err := h.bus.Publish(context.WithoutCancel(c.Request.Context()), events.NewEvent(events.TopicSaleNavigate, payload)); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response.Success(http.StatusAccepted, payload))
}
