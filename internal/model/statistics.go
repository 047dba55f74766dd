package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// KPIResponse aggregates the headline dashboard numbers for a period
type KPIResponse struct {
	TotalSales         decimal.Decimal `json:"total_sales"`
	Transactions       int64           `json:"transactions"`
	AverageBasket      decimal.Decimal `json:"average_basket"`
	PendingRequests    int64           `json:"pending_requests"`
	TimeRangeStartDate time.Time       `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time       `json:"time_range_end_date"`
}

// SeriesPoint is one bucket of the sales time series
type SeriesPoint struct {
	Period string          `json:"period"`
	Total  decimal.Decimal `json:"total"`
	Count  int64           `json:"count"`
}

// ForecastPoint is a projected bucket
type ForecastPoint struct {
	Step  int             `json:"step"`
	Value decimal.Decimal `json:"value"`
}

// DeliveryPerformance summarizes fulfilment of sales in a period
type DeliveryPerformance struct {
	Delivered          int64   `json:"delivered"`
	Pending            int64   `json:"pending"`
	AverageHours       float64 `json:"average_hours"`
	OnTimeRate         float64 `json:"on_time_rate"`
	OnTimeThresholdHrs float64 `json:"on_time_threshold_hours"`
}

// BranchRanking represents a branch ranked by revenue
type BranchRanking struct {
	BranchName   string          `json:"branch_name"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int64           `json:"transactions"`
}
