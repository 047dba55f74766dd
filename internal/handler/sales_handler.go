package handler

import (
	"net/http"

	"retailops/internal/middleware"
	"retailops/internal/service"
	"retailops/pkg/pagination"
	"retailops/pkg/response"

	"github.com/gin-gonic/gin"
)

type SalesHandler struct {
	salesService service.SalesService
	auth         *middleware.Authenticator
}

func NewSalesHandler(salesService service.SalesService, auth *middleware.Authenticator) *SalesHandler {
	return &SalesHandler{salesService: salesService, auth: auth}
}

func (h *SalesHandler) RegisterRoutes(router *gin.RouterGroup) {
	sales := router.Group("/api/sales")
	sales.Use(h.auth.RequireRole(middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleManager, middleware.RoleStaff))
	{
		sales.POST("", h.Record)
		sales.GET("", h.List)
		sales.GET("/:id", h.Get)
		sales.PUT("/:id/deliver", h.MarkDelivered)
	}
}

// Record books a sale and decrements stock
// @Summary      Record sale
// @Tags         sales
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      service.RecordSaleRequest  true  "Sale lines"
// @Success      201      {object}  response.Response{data=service.SaleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/sales [post]
func (h *SalesHandler) Record(c *gin.Context) {
	var req service.RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.CashierName == "" {
		req.CashierName = middleware.Actor(c)
	}

	sale, err := h.salesService.Record(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sale))
}

// List returns sales, newest first
// @Summary      List sales
// @Tags         sales
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "completed, voided or all"
// @Param        branch  query     string  false  "Branch name"
// @Param        search  query     string  false  "Sale id, branch or cashier"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.ListResponse{data=[]service.SaleResponse}
// @Router       /api/sales [get]
func (h *SalesHandler) List(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.SaleFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Branch: c.Query("branch"),
		Page:   p.Page,
		Limit:  p.Limit,
	}

	sales, total, err := h.salesService.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, sales, total, p.Page, p.Limit))
}

// Get returns a sale with its lines
// @Summary      Get sale
// @Tags         sales
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Sale ID"
// @Success      200  {object}  response.Response{data=service.SaleResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/sales/{id} [get]
func (h *SalesHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	sale, err := h.salesService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sale))
}

// MarkDelivered stamps the delivery time of a completed sale
// @Summary      Mark sale delivered
// @Tags         sales
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Sale ID"
// @Success      200  {object}  response.Response{data=service.SaleResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/sales/{id}/deliver [put]
func (h *SalesHandler) MarkDelivered(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	sale, err := h.salesService.MarkDelivered(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sale))
}
