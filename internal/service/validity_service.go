package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"retailops/internal/events"
	"retailops/internal/repository"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Validity classes
const (
	ValidityExpired  = "expired"
	ValidityExpiring = "expiring"
	ValidityValid    = "valid"
)

const DefaultExpiringWithinDays = 30

type ProductValidity struct {
	ProductID     uint   `json:"product_id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	BranchName    string `json:"branch_name"`
	Quantity      int    `json:"quantity"`
	ExpiryDate    string `json:"expiry_date"`
	DaysRemaining int    `json:"days_remaining"`
	Status        string `json:"status"`
}

type ValiditySummary struct {
	Expired    int64 `json:"expired"`
	Expiring   int64 `json:"expiring"`
	Valid      int64 `json:"valid"`
	Total      int64 `json:"total"`
	WithinDays int   `json:"within_days"`
}

type ValidityService interface {
	List(ctx context.Context, branch string, withinDays int, status string) ([]ProductValidity, error)
	Summary(ctx context.Context, branch string, withinDays int) (*ValiditySummary, error)
	// Recheck recomputes the branch summary and announces it to subscribers.
	Recheck(ctx context.Context, branch string) error
}

type validityService struct {
	productRepo repository.ProductRepository
	bus         Publisher
	clock       clock.Clock
	log         *zap.SugaredLogger
}

func NewValidityService(productRepo repository.ProductRepository, bus Publisher, clk clock.Clock, log *zap.SugaredLogger) ValidityService {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &validityService{productRepo: productRepo, bus: bus, clock: clk, log: log}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// classify buckets an expiry date relative to today. A product expiring today is still expiring.
func classify(expiry, today time.Time, withinDays int) (string, int) {
	days := int(math.Floor(startOfDay(expiry).Sub(today).Hours() / 24))
	switch {
	case days < 0:
		return ValidityExpired, days
	case days <= withinDays:
		return ValidityExpiring, days
	default:
		return ValidityValid, days
	}
}

func (s *validityService) List(ctx context.Context, branch string, withinDays int, status string) ([]ProductValidity, error) {
	if withinDays <= 0 {
		withinDays = DefaultExpiringWithinDays
	}
	products, err := s.productRepo.ListWithExpiry(ctx, branch, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	today := startOfDay(s.clock.Now())
	res := make([]ProductValidity, 0, len(products))
	for _, p := range products {
		class, days := classify(*p.ExpiryDate, today, withinDays)
		if status != "" && status != "all" && status != class {
			continue
		}
		res = append(res, ProductValidity{
			ProductID:     p.ID,
			SKU:           p.SKU,
			Name:          p.Name,
			BranchName:    p.BranchName,
			Quantity:      p.Quantity,
			ExpiryDate:    p.ExpiryDate.UTC().Format("2006-01-02"),
			DaysRemaining: days,
			Status:        class,
		})
	}
	return res, nil
}

func (s *validityService) Summary(ctx context.Context, branch string, withinDays int) (*ValiditySummary, error) {
	if withinDays <= 0 {
		withinDays = DefaultExpiringWithinDays
	}
	items, err := s.List(ctx, branch, withinDays, "")
	if err != nil {
		return nil, err
	}

	sum := &ValiditySummary{WithinDays: withinDays, Total: int64(len(items))}
	for _, it := range items {
		switch it.Status {
		case ValidityExpired:
			sum.Expired++
		case ValidityExpiring:
			sum.Expiring++
		default:
			sum.Valid++
		}
	}
	return sum, nil
}

func (s *validityService) Recheck(ctx context.Context, branch string) error {
	sum, err := s.Summary(ctx, branch, DefaultExpiringWithinDays)
	if err != nil {
		return err
	}
	publish(ctx, s.bus, s.log, events.TopicValidityUpdated, events.ValidityEvent{
		Branch:   branch,
		Expired:  sum.Expired,
		Expiring: sum.Expiring,
	})
	return nil
}
