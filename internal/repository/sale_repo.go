package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"retailops/internal/model"

	"gorm.io/gorm"
)

type SaleFilter struct {
	Status string
	Search string
	Branch string
	Page   int
	Limit  int
}

type SaleRepository interface {
	Create(ctx context.Context, sale *model.Sale) error
	CreateItem(ctx context.Context, item *model.SaleItem) error
	Update(ctx context.Context, sale *model.Sale) error
	FindByID(ctx context.Context, id uint) (*model.Sale, error)
	FindByIDWithItems(ctx context.Context, id uint) (*model.Sale, error)
	List(ctx context.Context, filter SaleFilter) ([]model.Sale, int64, error)
	// InRange returns completed sales created in [from, to), optionally for one branch.
	InRange(ctx context.Context, from, to time.Time, branch string) ([]model.Sale, error)
}

type saleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Create(ctx context.Context, sale *model.Sale) error {
	return GetDB(ctx, r.db).Omit("Items").Create(sale).Error
}

func (r *saleRepository) CreateItem(ctx context.Context, item *model.SaleItem) error {
	return GetDB(ctx, r.db).Omit("Product").Create(item).Error
}

func (r *saleRepository) Update(ctx context.Context, sale *model.Sale) error {
	return GetDB(ctx, r.db).Omit("Items").Save(sale).Error
}

func (r *saleRepository) FindByID(ctx context.Context, id uint) (*model.Sale, error) {
	var sale model.Sale
	if err := GetDB(ctx, r.db).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepository) FindByIDWithItems(ctx context.Context, id uint) (*model.Sale, error) {
	var sale model.Sale
	if err := GetDB(ctx, r.db).Preload("Items").First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepository) List(ctx context.Context, filter SaleFilter) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Sale{})
	if filter.Status != "" && filter.Status != "all" {
		db = db.Where("status = ?", strings.ToLower(filter.Status))
	}
	if filter.Branch != "" {
		db = db.Where("branch_name = ?", filter.Branch)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		if id, err := strconv.ParseUint(search, 10, 64); err == nil {
			db = db.Where("id = ? OR LOWER(branch_name) LIKE ? OR LOWER(cashier_name) LIKE ?", id, like, like)
		} else {
			db = db.Where("LOWER(branch_name) LIKE ? OR LOWER(cashier_name) LIKE ?", like, like)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		db = db.Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit)
	}
	if err := db.Order("created_at desc, id desc").Find(&sales).Error; err != nil {
		return nil, 0, err
	}

	return sales, total, nil
}

func (r *saleRepository) InRange(ctx context.Context, from, to time.Time, branch string) ([]model.Sale, error) {
	var sales []model.Sale
	db := GetDB(ctx, r.db).
		Where("status = ?", model.SaleCompleted).
		Where("created_at >= ? AND created_at < ?", from, to)
	if branch != "" {
		db = db.Where("branch_name = ?", branch)
	}
	err := db.Order("created_at asc").Find(&sales).Error
	return sales, err
}
