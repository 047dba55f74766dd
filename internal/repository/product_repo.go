package repository

import (
	"context"
	"strings"
	"time"

	"retailops/internal/model"

	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uint) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	List(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error)
	UpdateStock(ctx context.Context, id uint, quantity int) error
	FindByIDForUpdate(ctx context.Context, id uint) (*model.Product, error)
	// ListWithExpiry returns products that carry an expiry date, soonest first.
	ListWithExpiry(ctx context.Context, branch string, before *time.Time) ([]model.Product, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Create(product).Error
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Save(product).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).Where("sku = ?", sku).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Product{})
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		like := "%" + search + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *productRepository) UpdateStock(ctx context.Context, id uint, quantity int) error {
	return GetDB(ctx, r.db).Model(&model.Product{}).Where("id = ?", id).Update("quantity", quantity).Error
}

func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	if err := forUpdate(GetDB(ctx, r.db)).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ListWithExpiry(ctx context.Context, branch string, before *time.Time) ([]model.Product, error) {
	var products []model.Product
	db := GetDB(ctx, r.db).Where("expiry_date IS NOT NULL")
	if branch != "" {
		db = db.Where("branch_name = ?", branch)
	}
	if before != nil {
		db = db.Where("expiry_date <= ?", *before)
	}
	err := db.Order("expiry_date asc").Find(&products).Error
	return products, err
}
