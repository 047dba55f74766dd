package repository

import (
	"context"
	"time"

	"retailops/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesTotals is the aggregate of completed sales in a period.
type SalesTotals struct {
	Revenue      decimal.Decimal
	Transactions int64
}

// BranchTotals is SalesTotals for one branch.
type BranchTotals struct {
	BranchName   string
	Revenue      decimal.Decimal
	Transactions int64
}

type AnalyticsRepository interface {
	Totals(ctx context.Context, from, to time.Time, branch string) (SalesTotals, error)
	ByBranch(ctx context.Context, from, to time.Time) ([]BranchTotals, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) completedBetween(ctx context.Context, from, to time.Time) *gorm.DB {
	return GetDB(ctx, r.db).Model(&model.Sale{}).
		Where("status = ?", model.SaleCompleted).
		Where("created_at >= ? AND created_at < ?", from, to)
}

func (r *analyticsRepository) Totals(ctx context.Context, from, to time.Time, branch string) (SalesTotals, error) {
	var out SalesTotals
	db := r.completedBetween(ctx, from, to)
	if branch != "" {
		db = db.Where("branch_name = ?", branch)
	}
	err := db.Select("COALESCE(SUM(total), 0) as revenue, COUNT(*) as transactions").Scan(&out).Error
	return out, err
}

func (r *analyticsRepository) ByBranch(ctx context.Context, from, to time.Time) ([]BranchTotals, error) {
	var rows []BranchTotals
	err := r.completedBetween(ctx, from, to).
		Select("branch_name, COALESCE(SUM(total), 0) as revenue, COUNT(*) as transactions").
		Group("branch_name").
		Order("revenue desc").
		Scan(&rows).Error
	return rows, err
}
