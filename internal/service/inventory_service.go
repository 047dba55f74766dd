package service

import (
	"context"
	"fmt"
	"time"

	"retailops/internal/model"
	"retailops/internal/repository"

	"github.com/shopspring/decimal"
)

// Products are created and changed only through approved inventory requests; this service is the
// read side of the stock they produce.

type ProductResponse struct {
	ID         uint            `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	BranchName string          `json:"branch_name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type StockMovement struct {
	ID              uint      `json:"id"`
	TransactionType string    `json:"transaction_type"`
	QuantityChanged int       `json:"quantity_changed"`
	StockAfter      int       `json:"stock_after"`
	SaleID          *uint     `json:"sale_id,omitempty"`
	RequestID       *uint     `json:"request_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type InventoryService interface {
	GetProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error)
	GetProduct(ctx context.Context, id uint) (*ProductResponse, error)
	// Movements lists stock changes for a product, oldest first.
	Movements(ctx context.Context, id uint) ([]StockMovement, error)
}

type inventoryService struct {
	productRepo repository.ProductRepository
	invTxRepo   repository.InventoryTxRepository
}

func NewInventoryService(productRepo repository.ProductRepository, invTxRepo repository.InventoryTxRepository) InventoryService {
	return &inventoryService{productRepo: productRepo, invTxRepo: invTxRepo}
}

func toProductResponse(p *model.Product) ProductResponse {
	return ProductResponse{
		ID:         p.ID,
		SKU:        p.SKU,
		Name:       p.Name,
		BranchName: p.BranchName,
		Quantity:   p.Quantity,
		UnitPrice:  p.UnitPrice,
		ExpiryDate: p.ExpiryDate,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (s *inventoryService) GetProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error) {
	page, limit = normalizePage(page, limit)

	products, total, err := s.productRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	res := make([]ProductResponse, 0, len(products))
	for i := range products {
		res = append(res, toProductResponse(&products[i]))
	}
	return res, total, nil
}

func (s *inventoryService) GetProduct(ctx context.Context, id uint) (*ProductResponse, error) {
	p, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("product", id, err)
	}
	res := toProductResponse(p)
	return &res, nil
}

func (s *inventoryService) Movements(ctx context.Context, id uint) ([]StockMovement, error) {
	if _, err := s.productRepo.FindByID(ctx, id); err != nil {
		return nil, notFound("product", id, err)
	}

	txs, err := s.invTxRepo.ListByProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}

	res := make([]StockMovement, 0, len(txs))
	for _, tx := range txs {
		res = append(res, StockMovement{
			ID:              tx.ID,
			TransactionType: tx.TransactionType,
			QuantityChanged: tx.QuantityChanged,
			StockAfter:      tx.StockAfter,
			SaleID:          tx.SaleID,
			RequestID:       tx.RequestID,
			CreatedAt:       tx.CreatedAt,
		})
	}
	return res, nil
}
