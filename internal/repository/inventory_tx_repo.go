package repository

import (
	"context"

	"retailops/internal/model"

	"gorm.io/gorm"
)

type InventoryTxRepository interface {
	Create(ctx context.Context, tx *model.InventoryTransaction) error
	ListByProduct(ctx context.Context, productID uint) ([]model.InventoryTransaction, error)
}

type inventoryTxRepository struct {
	db *gorm.DB
}

func NewInventoryTxRepository(db *gorm.DB) InventoryTxRepository {
	return &inventoryTxRepository{db: db}
}

func (r *inventoryTxRepository) Create(ctx context.Context, tx *model.InventoryTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *inventoryTxRepository) ListByProduct(ctx context.Context, productID uint) ([]model.InventoryTransaction, error) {
	var txs []model.InventoryTransaction
	err := GetDB(ctx, r.db).Where("product_id = ?", productID).Order("id asc").Find(&txs).Error
	return txs, err
}
