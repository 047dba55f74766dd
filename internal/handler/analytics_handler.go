package handler

import (
	"net/http"
	"strconv"

	"retailops/internal/middleware"
	"retailops/internal/service"
	"retailops/pkg/response"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	analyticsService service.AnalyticsService
	auth             *middleware.Authenticator
	clock            clock.Clock
}

func NewAnalyticsHandler(analyticsService service.AnalyticsService, auth *middleware.Authenticator, clk clock.Clock) *AnalyticsHandler {
	if clk == nil {
		clk = clock.New()
	}
	return &AnalyticsHandler{analyticsService: analyticsService, auth: auth, clock: clk}
}

func (h *AnalyticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	analytics := router.Group("/api/analytics")
	analytics.Use(h.auth.RequireRole(middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleManager))
	{
		analytics.GET("/kpis", h.KPIs)
		analytics.GET("/sales-series", h.SalesSeries)
		analytics.GET("/forecast", h.Forecast)
		analytics.GET("/delivery", h.DeliveryPerformance)
		analytics.GET("/branches", h.BranchPerformance)
	}
}

func (h *AnalyticsHandler) query(c *gin.Context) (service.AnalyticsQuery, bool) {
	from, to, err := parseRange(c, h.clock.Now())
	if err != nil {
		badRequest(c, err.Error())
		return service.AnalyticsQuery{}, false
	}
	return service.AnalyticsQuery{From: from, To: to, Branch: c.Query("branch")}, true
}

// KPIs returns the headline numbers of a period
// @Summary      Dashboard KPIs
// @Description  Total sales, transactions, average basket and pending requests. Dates are YYYY-MM-DD (to is inclusive) or RFC3339.
// @Tags         analytics
// @Security     BearerAuth
// @Produce      json
// @Param        from    query     string  false  "Start date (default 29 days ago)"
// @Param        to      query     string  false  "End date (default today)"
// @Param        branch  query     string  false  "Branch name"
// @Success      200     {object}  response.Response{data=model.KPIResponse}
// @Failure      400     {object}  response.Response
// @Router       /api/analytics/kpis [get]
func (h *AnalyticsHandler) KPIs(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}

	kpis, err := h.analyticsService.KPIs(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, kpis))
}

// SalesSeries returns revenue per bucket
// @Summary      Sales time series
// @Tags         analytics
// @Security     BearerAuth
// @Produce      json
// @Param        from      query     string  false  "Start date"
// @Param        to        query     string  false  "End date"
// @Param        branch    query     string  false  "Branch name"
// @Param        group_by  query     string  false  "day, week or month (default day)"
// @Success      200       {object}  response.Response{data=[]model.SeriesPoint}
// @Failure      400       {object}  response.Response
// @Router       /api/analytics/sales-series [get]
func (h *AnalyticsHandler) SalesSeries(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}

	series, err := h.analyticsService.SalesSeries(c.Request.Context(), q, c.Query("group_by"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, series))
}

// Forecast projects the sales series forward with a linear trend
// @Summary      Sales forecast
// @Tags         analytics
// @Security     BearerAuth
// @Produce      json
// @Param        from      query     string  false  "Start date"
// @Param        to        query     string  false  "End date"
// @Param        branch    query     string  false  "Branch name"
// @Param        group_by  query     string  false  "day, week or month (default day)"
// @Param        horizon   query     int     false  "Buckets to project (default 7)"
// @Success      200       {object}  response.Response{data=[]model.ForecastPoint}
// @Failure      400       {object}  response.Response
// @Router       /api/analytics/forecast [get]
func (h *AnalyticsHandler) Forecast(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	horizon := queryInt(c, "horizon", service.DefaultForecastHorizon)

	points, err := h.analyticsService.Forecast(c.Request.Context(), q, c.Query("group_by"), horizon)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, points))
}

// DeliveryPerformance reports delivered vs pending sales
// @Summary      Delivery performance
// @Tags         analytics
// @Security     BearerAuth
// @Produce      json
// @Param        from       query     string  false  "Start date"
// @Param        to         query     string  false  "End date"
// @Param        branch     query     string  false  "Branch name"
// @Param        threshold  query     number  false  "On-time threshold in hours (default 48)"
// @Success      200        {object}  response.Response{data=model.DeliveryPerformance}
// @Failure      400        {object}  response.Response
// @Router       /api/analytics/delivery [get]
func (h *AnalyticsHandler) DeliveryPerformance(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	threshold, err := strconv.ParseFloat(c.DefaultQuery("threshold", "0"), 64)
	if err != nil {
		badRequest(c, "Invalid threshold")
		return
	}

	perf, err := h.analyticsService.DeliveryPerformance(c.Request.Context(), q, threshold)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, perf))
}

// BranchPerformance ranks branches by revenue
// @Summary      Branch ranking
// @Tags         analytics
// @Security     BearerAuth
// @Produce      json
// @Param        from  query     string  false  "Start date"
// @Param        to    query     string  false  "End date"
// @Success      200   {object}  response.Response{data=[]model.BranchRanking}
// @Failure      400   {object}  response.Response
// @Router       /api/analytics/branches [get]
func (h *AnalyticsHandler) BranchPerformance(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}

	ranking, err := h.analyticsService.BranchPerformance(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, ranking))
}
