package handler

import (
	"net/http"

	"retailops/internal/middleware"
	"retailops/internal/service"
	"retailops/pkg/pagination"
	"retailops/pkg/response"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	inventoryService service.InventoryService
	auth             *middleware.Authenticator
}

func NewInventoryHandler(inventoryService service.InventoryService, auth *middleware.Authenticator) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService, auth: auth}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	products := router.Group("/api/products")
	products.Use(h.auth.RequireRole(middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleManager, middleware.RoleStaff))
	{
		products.GET("", h.GetProducts)
		products.GET("/:id", h.GetProduct)
		products.GET("/:id/movements", h.Movements)
	}
}

// GetProducts handles retrieving paginated stock levels
// @Summary      Get products
// @Description  Retrieves a paginated list of products with current stock
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by product name or SKU"
// @Success      200     {object}  response.ListResponse{data=[]service.ProductResponse}
// @Failure      500     {object}  response.Response
// @Router       /api/products [get]
func (h *InventoryHandler) GetProducts(c *gin.Context) {
	p := pagination.Parse(c)

	products, total, err := h.inventoryService.GetProducts(c.Request.Context(), p.Page, p.Limit, c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, products, total, p.Page, p.Limit))
}

// GetProduct returns one product
// @Summary      Get product
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Product ID"
// @Success      200  {object}  response.Response{data=service.ProductResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id} [get]
func (h *InventoryHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.inventoryService.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// Movements lists the stock ledger of a product
// @Summary      Product stock movements
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Product ID"
// @Success      200  {object}  response.Response{data=[]service.StockMovement}
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id}/movements [get]
func (h *InventoryHandler) Movements(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	movements, err := h.inventoryService.Movements(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, movements))
}
