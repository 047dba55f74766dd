package handler

import (
	"net/http"

	"retailops/internal/middleware"
	"retailops/internal/service"
	"retailops/pkg/pagination"
	"retailops/pkg/response"

	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	accountService service.AccountService
	auth           *middleware.Authenticator
}

func NewAccountHandler(accountService service.AccountService, auth *middleware.Authenticator) *AccountHandler {
	return &AccountHandler{accountService: accountService, auth: auth}
}

func (h *AccountHandler) RegisterRoutes(router *gin.RouterGroup) {
	accounts := router.Group("/api/accounts")
	{
		accounts.POST("/register", h.auth.RequireRole(middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleManager), h.Register)

		requests := accounts.Group("/requests")
		requests.Use(h.auth.RequireRole(middleware.RoleOwner))
		requests.GET("", h.ListRequests)
		requests.PUT("/:id/approve", h.Approve)
		requests.PUT("/:id/reject", h.Reject)
	}
}

type rejectBody struct {
	Reason string `json:"reason"`
}

// Register submits an account registration for owner review
// @Summary      Submit account registration
// @Description  Stores a pending account request; an owner approves or rejects it
// @Tags         accounts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      service.RegisterAccountRequest  true  "Account data"
// @Success      201      {object}  response.Response{data=service.AccountRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/accounts/register [post]
func (h *AccountHandler) Register(c *gin.Context) {
	var req service.RegisterAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.CreatedByName == "" {
		req.CreatedByName = middleware.Actor(c)
	}

	res, err := h.accountService.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// ListRequests returns account requests, optionally filtered by status, branch and search term
// @Summary      List account requests
// @Tags         accounts
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "pending, approved, rejected or all"
// @Param        branch  query     string  false  "Branch name"
// @Param        search  query     string  false  "Matches name, branch or role"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.ListResponse{data=[]service.AccountRequestResponse}
// @Router       /api/accounts/requests [get]
func (h *AccountHandler) ListRequests(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.AccountRequestFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Branch: c.Query("branch"),
		Page:   p.Page,
		Limit:  p.Limit,
	}

	reqs, total, err := h.accountService.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, reqs, total, p.Page, p.Limit))
}

// Approve approves a pending account request
// @Summary      Approve account request
// @Tags         accounts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.AccountRequestResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/accounts/requests/{id}/approve [put]
func (h *AccountHandler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	res, err := h.accountService.Approve(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Reject rejects a pending account request
// @Summary      Reject account request
// @Tags         accounts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int         true   "Request ID"
// @Param        request  body      rejectBody  false  "Optional reason"
// @Success      200      {object}  response.Response{data=service.AccountRequestResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/accounts/requests/{id}/reject [put]
func (h *AccountHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var body rejectBody
	// The reason is optional, so an empty body is accepted.
	_ = c.ShouldBindJSON(&body)

	res, err := h.accountService.Reject(c.Request.Context(), id, middleware.Actor(c), body.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
