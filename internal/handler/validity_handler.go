package handler

import (
	"net/http"

	"retailops/internal/middleware"
	"retailops/internal/service"
	"retailops/pkg/response"

	"github.com/gin-gonic/gin"
)

type ValidityHandler struct {
	validityService service.ValidityService
	auth            *middleware.Authenticator
}

func NewValidityHandler(validityService service.ValidityService, auth *middleware.Authenticator) *ValidityHandler {
	return &ValidityHandler{validityService: validityService, auth: auth}
}

func (h *ValidityHandler) RegisterRoutes(router *gin.RouterGroup) {
	validity := router.Group("/api/products/validity")
	validity.Use(h.auth.RequireRole(middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleManager, middleware.RoleStaff))
	{
		validity.GET("", h.List)
		validity.GET("/summary", h.Summary)
	}
}

// List classifies products by expiry
// @Summary      Product validity
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        branch  query     string  false  "Branch name"
// @Param        within  query     int     false  "Expiring window in days (default 30)"
// @Param        status  query     string  false  "expired, expiring or valid"
// @Success      200     {object}  response.Response{data=[]service.ProductValidity}
// @Router       /api/products/validity [get]
func (h *ValidityHandler) List(c *gin.Context) {
	within := queryInt(c, "within", service.DefaultExpiringWithinDays)

	rows, err := h.validityService.List(c.Request.Context(), c.Query("branch"), within, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// Summary counts products per validity class
// @Summary      Product validity summary
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        branch  query     string  false  "Branch name"
// @Param        within  query     int     false  "Expiring window in days (default 30)"
// @Success      200     {object}  response.Response{data=service.ValiditySummary}
// @Router       /api/products/validity/summary [get]
func (h *ValidityHandler) Summary(c *gin.Context) {
	within := queryInt(c, "within", service.DefaultExpiringWithinDays)

	summary, err := h.validityService.Summary(c.Request.Context(), c.Query("branch"), within)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}
