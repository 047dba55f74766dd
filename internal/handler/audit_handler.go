package handler

import (
	"net/http"

	"retailops/internal/middleware"
	"retailops/internal/service"
	"retailops/pkg/pagination"
	"retailops/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Authenticator
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Authenticator) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.auth.RequireRole(middleware.RoleOwner, middleware.RoleAdmin))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns one page of the audit trail, newest first
// @Summary      Get audit logs
// @Description  Lists recorded decisions and changes, optionally narrowed to one entity or actor
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_type  query     string  false  "account_request, inventory_request, product or sale"
// @Param        entity_id    query     string  false  "Entity id"
// @Param        actor        query     string  false  "Actor name"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.ListResponse{data=[]service.AuditLogResponse}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), service.AuditFilter{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Actor:      c.Query("actor"),
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve audit logs: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, logs, total, p.Page, p.Limit))
}
