package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"retailops/internal/cache"
	"retailops/internal/model"
	"retailops/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Series grouping
const (
	GroupByDay   = "day"
	GroupByWeek  = "week"
	GroupByMonth = "month"
)

const (
	kpiCachePrefix         = "kpi"
	DefaultOnTimeThreshold = 48.0
	DefaultForecastHorizon = 7
	maxSeriesBuckets       = 366
)

// AnalyticsQuery is a half-open [From, To) period, optionally limited to one branch.
type AnalyticsQuery struct {
	From   time.Time
	To     time.Time
	Branch string
}

func (q AnalyticsQuery) validate() error {
	if q.From.IsZero() || q.To.IsZero() || !q.From.Before(q.To) {
		return fmt.Errorf("from must be before to: %w", ErrValidation)
	}
	return nil
}

type AnalyticsService interface {
	KPIs(ctx context.Context, q AnalyticsQuery) (*model.KPIResponse, error)
	SalesSeries(ctx context.Context, q AnalyticsQuery, groupBy string) ([]model.SeriesPoint, error)
	Forecast(ctx context.Context, q AnalyticsQuery, groupBy string, horizon int) ([]model.ForecastPoint, error)
	DeliveryPerformance(ctx context.Context, q AnalyticsQuery, thresholdHours float64) (*model.DeliveryPerformance, error)
	BranchPerformance(ctx context.Context, q AnalyticsQuery) ([]model.BranchRanking, error)
	// InvalidateKPIs drops cached KPI responses after sales or request decisions.
	InvalidateKPIs(ctx context.Context) error
}

type analyticsService struct {
	analyticsRepo repository.AnalyticsRepository
	saleRepo      repository.SaleRepository
	accountRepo   repository.AccountRequestRepository
	inventoryRepo repository.InventoryRequestRepository
	cache         cache.Cache
	log           *zap.SugaredLogger
}

func NewAnalyticsService(
	analyticsRepo repository.AnalyticsRepository,
	saleRepo repository.SaleRepository,
	accountRepo repository.AccountRequestRepository,
	inventoryRepo repository.InventoryRequestRepository,
	c cache.Cache,
	log *zap.SugaredLogger,
) AnalyticsService {
	if c == nil {
		c = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &analyticsService{
		analyticsRepo: analyticsRepo,
		saleRepo:      saleRepo,
		accountRepo:   accountRepo,
		inventoryRepo: inventoryRepo,
		cache:         c,
		log:           log,
	}
}

func (s *analyticsService) KPIs(ctx context.Context, q AnalyticsQuery) (*model.KPIResponse, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	key := cache.Key(kpiCachePrefix, q.From.UTC().Format(time.RFC3339), q.To.UTC().Format(time.RFC3339), q.Branch)
	var cached model.KPIResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.log.Warnw("kpi cache lookup failed", "key", key, "error", err)
	} else if hit {
		return &cached, nil
	}

	totals, err := s.analyticsRepo.Totals(ctx, q.From, q.To, q.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}
	accounts, err := s.accountRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count account requests: %w", err)
	}
	inventory, err := s.inventoryRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count inventory requests: %w", err)
	}

	res := &model.KPIResponse{
		TotalSales:         totals.Revenue.Round(2),
		Transactions:       totals.Transactions,
		AverageBasket:      decimal.Zero,
		PendingRequests:    accounts[model.RequestPending] + inventory[model.RequestPending],
		TimeRangeStartDate: q.From.UTC(),
		TimeRangeEndDate:   q.To.UTC(),
	}
	if totals.Transactions > 0 {
		res.AverageBasket = totals.Revenue.Div(decimal.NewFromInt(totals.Transactions)).Round(2)
	}

	if err := s.cache.Set(ctx, key, res); err != nil {
		s.log.Warnw("kpi cache store failed", "key", key, "error", err)
	}
	return res, nil
}

func (s *analyticsService) InvalidateKPIs(ctx context.Context) error {
	return s.cache.Invalidate(ctx, cache.Key(kpiCachePrefix))
}

// bucketStart truncates t to the start of its group. Weeks start on Monday.
func bucketStart(t time.Time, groupBy string) time.Time {
	day := startOfDay(t)
	switch groupBy {
	case GroupByWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GroupByMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func nextBucket(t time.Time, groupBy string) time.Time {
	switch groupBy {
	case GroupByWeek:
		return t.AddDate(0, 0, 7)
	case GroupByMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func bucketLabel(t time.Time, groupBy string) string {
	if groupBy == GroupByMonth {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

func (s *analyticsService) SalesSeries(ctx context.Context, q AnalyticsQuery, groupBy string) ([]model.SeriesPoint, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	switch groupBy {
	case "":
		groupBy = GroupByDay
	case GroupByDay, GroupByWeek, GroupByMonth:
	default:
		return nil, fmt.Errorf("unknown group_by %q: %w", groupBy, ErrValidation)
	}

	sales, err := s.saleRepo.InRange(ctx, q.From, q.To, q.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}

	// Every bucket of the period is present so charts do not skip empty days.
	var points []model.SeriesPoint
	index := make(map[string]int)
	for b := bucketStart(q.From, groupBy); b.Before(q.To); b = nextBucket(b, groupBy) {
		if len(points) >= maxSeriesBuckets {
			return nil, fmt.Errorf("period has more than %d buckets: %w", maxSeriesBuckets, ErrValidation)
		}
		label := bucketLabel(b, groupBy)
		index[label] = len(points)
		points = append(points, model.SeriesPoint{Period: label, Total: decimal.Zero})
	}

	for _, sale := range sales {
		i, ok := index[bucketLabel(bucketStart(sale.CreatedAt, groupBy), groupBy)]
		if !ok {
			continue
		}
		points[i].Total = points[i].Total.Add(sale.Total)
		points[i].Count++
	}
	return points, nil
}

func (s *analyticsService) Forecast(ctx context.Context, q AnalyticsQuery, groupBy string, horizon int) ([]model.ForecastPoint, error) {
	series, err := s.SalesSeries(ctx, q, groupBy)
	if err != nil {
		return nil, err
	}
	if horizon <= 0 {
		horizon = DefaultForecastHorizon
	}
	return Forecast(series, horizon), nil
}

// Forecast projects the next horizon buckets with an ordinary least squares line over the series
// totals. Projections never go below zero.
func Forecast(series []model.SeriesPoint, horizon int) []model.ForecastPoint {
	n := len(series)
	if n == 0 || horizon <= 0 {
		return []model.ForecastPoint{}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range series {
		x := float64(i)
		y := p.Total.InexactFloat64()
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	fn := float64(n)
	slope := 0.0
	if denom := fn*sumXX - sumX*sumX; denom != 0 {
		slope = (fn*sumXY - sumX*sumY) / denom
	}
	intercept := (sumY - slope*sumX) / fn

	out := make([]model.ForecastPoint, 0, horizon)
	for step := 1; step <= horizon; step++ {
		y := intercept + slope*float64(n-1+step)
		out = append(out, model.ForecastPoint{
			Step:  step,
			Value: decimal.NewFromFloat(math.Max(0, y)).Round(2),
		})
	}
	return out
}

func (s *analyticsService) DeliveryPerformance(ctx context.Context, q AnalyticsQuery, thresholdHours float64) (*model.DeliveryPerformance, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if thresholdHours <= 0 {
		thresholdHours = DefaultOnTimeThreshold
	}

	sales, err := s.saleRepo.InRange(ctx, q.From, q.To, q.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}

	res := &model.DeliveryPerformance{OnTimeThresholdHrs: thresholdHours}
	var totalHours float64
	var onTime int64
	for _, sale := range sales {
		if sale.DeliveredAt == nil {
			res.Pending++
			continue
		}
		res.Delivered++
		hours := sale.DeliveredAt.Sub(sale.CreatedAt).Hours()
		totalHours += hours
		if hours <= thresholdHours {
			onTime++
		}
	}
	if res.Delivered > 0 {
		res.AverageHours = math.Round(totalHours/float64(res.Delivered)*100) / 100
		res.OnTimeRate = math.Round(float64(onTime)/float64(res.Delivered)*10000) / 10000
	}
	return res, nil
}

func (s *analyticsService) BranchPerformance(ctx context.Context, q AnalyticsQuery) ([]model.BranchRanking, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	rows, err := s.analyticsRepo.ByBranch(ctx, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate branches: %w", err)
	}

	res := make([]model.BranchRanking, 0, len(rows))
	for _, r := range rows {
		res = append(res, model.BranchRanking{
			BranchName:   r.BranchName,
			Revenue:      r.Revenue.Round(2),
			Transactions: r.Transactions,
		})
	}
	return res, nil
}
