package handler

import (
	"net/http"

	"retailops/internal/middleware"
	"retailops/internal/service"
	"retailops/pkg/pagination"
	"retailops/pkg/response"

	"github.com/gin-gonic/gin"
)

type InventoryRequestHandler struct {
	requestService service.InventoryRequestService
	auth           *middleware.Authenticator
}

func NewInventoryRequestHandler(requestService service.InventoryRequestService, auth *middleware.Authenticator) *InventoryRequestHandler {
	return &InventoryRequestHandler{requestService: requestService, auth: auth}
}

func (h *InventoryRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyone := h.auth.RequireRole(middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleManager, middleware.RoleStaff)
	reviewers := h.auth.RequireRole(middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleManager)

	items := router.Group("/api/items")
	{
		items.GET("/request-status", anyone, h.StatusSummary)

		pending := items.Group("/pending")
		pending.GET("", anyone, h.List)
		pending.POST("", anyone, h.Submit)
		pending.GET("/:id", anyone, h.Get)
		pending.GET("/:id/history", anyone, h.History)
		pending.PUT("/:id/resubmit", anyone, h.Resubmit)
		pending.PUT("/:id/approve", reviewers, h.Approve)
		pending.PUT("/:id/reject", reviewers, h.Reject)
		pending.PUT("/:id/request-changes", reviewers, h.RequestChanges)
	}
}

// Submit creates an inventory change request at the manager review stage
// @Summary      Submit inventory change request
// @Tags         inventory-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      service.SubmitInventoryRequest  true  "Change request"
// @Success      201      {object}  response.Response{data=service.InventoryRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/items/pending [post]
func (h *InventoryRequestHandler) Submit(c *gin.Context) {
	var req service.SubmitInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.CreatedByName == "" {
		req.CreatedByName = middleware.Actor(c)
	}

	res, err := h.requestService.Submit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// List returns inventory change requests
// @Summary      List inventory change requests
// @Tags         inventory-requests
// @Security     BearerAuth
// @Produce      json
// @Param        status       query     string  false  "pending, approved, rejected, changes_requested or all"
// @Param        action_type  query     string  false  "add or update"
// @Param        stage        query     string  false  "manager_review, admin_review or completed"
// @Param        branch       query     string  false  "Branch name"
// @Param        search       query     string  false  "Matches product name, branch or creator"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Items per page (default 20)"
// @Success      200          {object}  response.ListResponse{data=[]service.InventoryRequestResponse}
// @Router       /api/items/pending [get]
func (h *InventoryRequestHandler) List(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.InventoryRequestFilter{
		Status:     c.Query("status"),
		ActionType: c.Query("action_type"),
		Stage:      c.Query("stage"),
		Branch:     c.Query("branch"),
		Search:     c.Query("search"),
		Page:       p.Page,
		Limit:      p.Limit,
	}

	reqs, total, err := h.requestService.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, reqs, total, p.Page, p.Limit))
}

// Get returns one inventory change request
// @Summary      Get inventory change request
// @Tags         inventory-requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.InventoryRequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/items/pending/{id} [get]
func (h *InventoryRequestHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	res, err := h.requestService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Approve advances a request one review stage
// @Summary      Approve inventory change request
// @Description  Manager approval either applies the change or forwards it to admin review
// @Tags         inventory-requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.InventoryRequestResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/items/pending/{id}/approve [put]
func (h *InventoryRequestHandler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if !h.canDecide(c, id) {
		return
	}

	res, err := h.requestService.Approve(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Reject rejects a request
// @Summary      Reject inventory change request
// @Tags         inventory-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int         true   "Request ID"
// @Param        request  body      rejectBody  false  "Optional reason"
// @Success      200      {object}  response.Response{data=service.InventoryRequestResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/items/pending/{id}/reject [put]
func (h *InventoryRequestHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if !h.canDecide(c, id) {
		return
	}

	var body rejectBody
	_ = c.ShouldBindJSON(&body)

	res, err := h.requestService.Reject(c.Request.Context(), id, middleware.Actor(c), body.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// RequestChanges sends a request back to its creator
// @Summary      Request changes
// @Tags         inventory-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                        true  "Request ID"
// @Param        request  body      service.RequestChangesDTO  true  "Change type and comment"
// @Success      200      {object}  response.Response{data=service.InventoryRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/items/pending/{id}/request-changes [put]
func (h *InventoryRequestHandler) RequestChanges(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req service.RequestChangesDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !h.canDecide(c, id) {
		return
	}

	res, err := h.requestService.RequestChanges(c.Request.Context(), id, middleware.Actor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Resubmit sends a revised payload back to manager review
// @Summary      Resubmit inventory change request
// @Tags         inventory-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                               true  "Request ID"
// @Param        request  body      service.ResubmitInventoryRequest  true  "Revised product data"
// @Success      200      {object}  response.Response{data=service.InventoryRequestResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/items/pending/{id}/resubmit [put]
func (h *InventoryRequestHandler) Resubmit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req service.ResubmitInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.requestService.Resubmit(c.Request.Context(), id, middleware.Actor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// History returns the audit trail of a request, oldest first
// @Summary      Inventory request history
// @Tags         inventory-requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]service.HistoryEntry}
// @Router       /api/items/pending/{id}/history [get]
func (h *InventoryRequestHandler) History(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	entries, err := h.requestService.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// StatusSummary counts requests per status
// @Summary      Inventory request status counts
// @Tags         inventory-requests
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.RequestStatusSummary}
// @Router       /api/items/request-status [get]
func (h *InventoryRequestHandler) StatusSummary(c *gin.Context) {
	summary, err := h.requestService.StatusSummary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// canDecide keeps managers out of the admin review stage.
func (h *InventoryRequestHandler) canDecide(c *gin.Context, id uint) bool {
	role := c.GetString(middleware.CtxUserRole)
	if role != middleware.RoleManager {
		return true
	}
	req, err := h.requestService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return false
	}
	if !service.StageAllows(role, req.CurrentStage) {
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Admin review requires an admin or owner"))
		return false
	}
	return true
}
