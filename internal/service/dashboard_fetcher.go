package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"retailops/internal/dashboard"
)

// ChartsFetcher loads every dashboard chart for a filter. The queries run concurrently; a
// failing chart is left empty and its error joined into the returned one.
func ChartsFetcher(analytics AnalyticsService) dashboard.Fetcher {
	return func(ctx context.Context, f dashboard.Filter) (dashboard.Charts, error) {
		q := AnalyticsQuery{From: f.From, To: f.To, Branch: f.Branch}
		horizon := f.Horizon
		if horizon <= 0 {
			horizon = DefaultForecastHorizon
		}

		var (
			charts dashboard.Charts
			mu     sync.Mutex
			errs   []error
			wg     sync.WaitGroup
		)
		load := func(chart string, fn func() error) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := fn(); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", chart, err))
					mu.Unlock()
				}
			}()
		}

		load("series", func() error {
			series, err := analytics.SalesSeries(ctx, q, f.GroupBy)
			if err != nil {
				return err
			}
			points := make([]dashboard.Point, 0, len(series))
			for _, p := range series {
				points = append(points, dashboard.Point{Label: p.Period, Value: p.Total, Count: p.Count})
			}
			forecast := Forecast(series, horizon)
			mu.Lock()
			charts.Points, charts.Forecast = points, forecast
			mu.Unlock()
			return nil
		})
		load("kpis", func() error {
			kpis, err := analytics.KPIs(ctx, q)
			if err != nil {
				return err
			}
			mu.Lock()
			charts.KPIs = kpis
			mu.Unlock()
			return nil
		})
		load("delivery", func() error {
			perf, err := analytics.DeliveryPerformance(ctx, q, f.Threshold)
			if err != nil {
				return err
			}
			mu.Lock()
			charts.Delivery = perf
			mu.Unlock()
			return nil
		})
		load("branches", func() error {
			ranking, err := analytics.BranchPerformance(ctx, q)
			if err != nil {
				return err
			}
			mu.Lock()
			charts.Branches = ranking
			mu.Unlock()
			return nil
		})
		wg.Wait()

		return charts, errors.Join(errs...)
	}
}
