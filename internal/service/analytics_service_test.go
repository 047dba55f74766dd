package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"retailops/internal/dashboard"
	"retailops/internal/model"
	"retailops/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dst)
}

func (c *mapCache) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func seedSales(t *testing.T, f *fixture, rows []model.Sale) {
	t.Helper()
	repo := repository.NewSaleRepository(f.db)
	for i := range rows {
		if rows[i].Status == "" {
			rows[i].Status = model.SaleCompleted
		}
		require.NoError(t, repo.Create(context.Background(), &rows[i]))
	}
}

func newAnalytics(f *fixture, c *mapCache) AnalyticsService {
	return NewAnalyticsService(
		repository.NewAnalyticsRepository(f.db),
		repository.NewSaleRepository(f.db),
		repository.NewAccountRequestRepository(f.db),
		repository.NewInventoryRequestRepository(f.db),
		c,
		nil,
	)
}

var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func TestAnalyticsService_KPIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := newMapCache()
	svc := newAnalytics(f, c)

	seedSales(t, f, []model.Sale{
		{BranchName: "North", Total: decimal.RequireFromString("10"), CreatedAt: monday.Add(time.Hour)},
		{BranchName: "North", Total: decimal.RequireFromString("5"), CreatedAt: monday.Add(2 * time.Hour)},
		{BranchName: "South", Total: decimal.RequireFromString("5"), CreatedAt: monday.Add(3 * time.Hour)},
	})
	_, err := f.accounts.Register(ctx, RegisterAccountRequest{
		FullName: "P", Username: "p", Email: "p@x.io", Password: "secret1", Roles: []string{"staff"},
	})
	require.NoError(t, err)

	q := AnalyticsQuery{From: monday, To: monday.AddDate(0, 0, 1)}
	kpi, err := svc.KPIs(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "20", kpi.TotalSales.String())
	assert.EqualValues(t, 3, kpi.Transactions)
	assert.Equal(t, "6.67", kpi.AverageBasket.String())
	assert.EqualValues(t, 1, kpi.PendingRequests)

	again, err := svc.KPIs(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, c.hits)
	assert.True(t, kpi.TotalSales.Equal(again.TotalSales))

	require.NoError(t, svc.InvalidateKPIs(ctx))
	assert.Empty(t, c.data)

	north, err := svc.KPIs(ctx, AnalyticsQuery{From: q.From, To: q.To, Branch: "North"})
	require.NoError(t, err)
	assert.Equal(t, "7.5", north.AverageBasket.String())

	_, err = svc.KPIs(ctx, AnalyticsQuery{From: q.To, To: q.From})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAnalyticsService_SalesSeriesFillsBuckets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newAnalytics(f, newMapCache())

	seedSales(t, f, []model.Sale{
		{BranchName: "North", Total: decimal.NewFromInt(4), CreatedAt: monday.Add(time.Hour)},
		{BranchName: "North", Total: decimal.NewFromInt(6), CreatedAt: monday.Add(5 * time.Hour)},
		{BranchName: "North", Total: decimal.NewFromInt(9), CreatedAt: monday.AddDate(0, 0, 2)},
		{BranchName: "North", Total: decimal.NewFromInt(1), CreatedAt: monday.AddDate(0, 0, 8)},
	})

	days, err := svc.SalesSeries(ctx, AnalyticsQuery{From: monday, To: monday.AddDate(0, 0, 3)}, "")
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2025-03-03", days[0].Period)
	assert.Equal(t, "10", days[0].Total.String())
	assert.EqualValues(t, 2, days[0].Count)
	assert.True(t, days[1].Total.IsZero())
	assert.Equal(t, "9", days[2].Total.String())

	weeks, err := svc.SalesSeries(ctx, AnalyticsQuery{From: monday.AddDate(0, 0, 1), To: monday.AddDate(0, 0, 14)}, GroupByWeek)
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	assert.Equal(t, "2025-03-03", weeks[0].Period)
	assert.Equal(t, "9", weeks[0].Total.String(), "sales before From are excluded")
	assert.Equal(t, "1", weeks[1].Total.String())

	_, err = svc.SalesSeries(ctx, AnalyticsQuery{From: monday, To: monday.AddDate(0, 0, 1)}, "hour")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestForecast_LinearTrend(t *testing.T) {
	series := []model.SeriesPoint{
		{Total: decimal.NewFromInt(10)},
		{Total: decimal.NewFromInt(20)},
		{Total: decimal.NewFromInt(30)},
	}
	out := Forecast(series, 2)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Step)
	assert.Equal(t, "40", out[0].Value.String())
	assert.Equal(t, "50", out[1].Value.String())

	falling := Forecast([]model.SeriesPoint{{Total: decimal.NewFromInt(20)}, {Total: decimal.NewFromInt(5)}}, 3)
	for _, p := range falling {
		assert.False(t, p.Value.IsNegative())
	}

	flat := Forecast([]model.SeriesPoint{{Total: decimal.NewFromInt(7)}}, 1)
	assert.Equal(t, "7", flat[0].Value.String())

	assert.Empty(t, Forecast(nil, 3))
}

func TestAnalyticsService_DeliveryAndBranches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newAnalytics(f, newMapCache())

	fast := monday.Add(10 * time.Hour)
	slow := monday.Add(72 * time.Hour)
	seedSales(t, f, []model.Sale{
		{BranchName: "North", Total: decimal.NewFromInt(3), CreatedAt: monday, DeliveredAt: &fast},
		{BranchName: "South", Total: decimal.NewFromInt(8), CreatedAt: monday, DeliveredAt: &slow},
		{BranchName: "South", Total: decimal.NewFromInt(1), CreatedAt: monday.Add(time.Hour)},
	})

	q := AnalyticsQuery{From: monday, To: monday.AddDate(0, 0, 7)}
	perf, err := svc.DeliveryPerformance(ctx, q, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, perf.Delivered)
	assert.EqualValues(t, 1, perf.Pending)
	assert.InDelta(t, 41.0, perf.AverageHours, 0.001)
	assert.InDelta(t, 0.5, perf.OnTimeRate, 0.0001)
	assert.Equal(t, DefaultOnTimeThreshold, perf.OnTimeThresholdHrs)

	ranking, err := svc.BranchPerformance(ctx, q)
	require.NoError(t, err)
	require.Len(t, ranking, 2)
	assert.Equal(t, "South", ranking[0].BranchName)
	assert.Equal(t, "9", ranking[0].Revenue.String())
	assert.EqualValues(t, 2, ranking[0].Transactions)
}

func TestChartsFetcher_LoadsEveryChart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fetch := ChartsFetcher(newAnalytics(f, newMapCache()))

	delivered := monday.Add(12 * time.Hour)
	seedSales(t, f, []model.Sale{
		{BranchName: "North", Total: decimal.NewFromInt(4), CreatedAt: monday.Add(time.Hour), DeliveredAt: &delivered},
		{BranchName: "South", Total: decimal.NewFromInt(6), CreatedAt: monday.AddDate(0, 0, 1)},
	})

	charts, err := fetch(ctx, dashboard.Filter{From: monday, To: monday.AddDate(0, 0, 2)})
	require.NoError(t, err)
	require.Len(t, charts.Points, 2)
	assert.Equal(t, "2025-03-03", charts.Points[0].Label)
	assert.Len(t, charts.Forecast, DefaultForecastHorizon)
	require.NotNil(t, charts.KPIs)
	assert.Equal(t, "10", charts.KPIs.TotalSales.String())
	require.NotNil(t, charts.Delivery)
	assert.EqualValues(t, 1, charts.Delivery.Delivered)
	require.Len(t, charts.Branches, 2)
	assert.Equal(t, "South", charts.Branches[0].BranchName)

	partial, err := fetch(ctx, dashboard.Filter{From: monday, To: monday.AddDate(0, 0, 2), GroupBy: "hour", Horizon: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "series")
	assert.Empty(t, partial.Points)
	assert.NotNil(t, partial.KPIs, "other charts still load")
	assert.Len(t, partial.Branches, 2)
}
