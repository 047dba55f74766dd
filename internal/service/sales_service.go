package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"retailops/internal/events"
	"retailops/internal/model"
	"retailops/internal/repository"
	"retailops/internal/review"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DTOs
type SaleItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

type RecordSaleRequest struct {
	BranchName  string            `json:"branch_name" binding:"required"`
	CashierName string            `json:"cashier_name"`
	Items       []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
}

type SaleFilter struct {
	Status string
	Search string
	Branch string
	Page   int
	Limit  int
}

type SaleItemResponse struct {
	ProductID uint   `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type SaleResponse struct {
	ID          uint               `json:"id"`
	BranchName  string             `json:"branch_name"`
	CashierName string             `json:"cashier_name"`
	Total       string             `json:"total"`
	Status      string             `json:"status"`
	Items       []SaleItemResponse `json:"items,omitempty"`
	DeliveredAt string             `json:"delivered_at,omitempty"`
	CreatedAt   string             `json:"created_at"`
}

type SalesService interface {
	Record(ctx context.Context, actor string, req RecordSaleRequest) (*SaleResponse, error)
	Get(ctx context.Context, id uint) (*SaleResponse, error)
	List(ctx context.Context, filter SaleFilter) ([]SaleResponse, int64, error)
	MarkDelivered(ctx context.Context, id uint, actor string) (*SaleResponse, error)
}

type salesService struct {
	saleRepo    repository.SaleRepository
	productRepo repository.ProductRepository
	invTxRepo   repository.InventoryTxRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	bus         Publisher
	sanitizer   review.Sanitizer
	log         *zap.SugaredLogger
}

func NewSalesService(
	saleRepo repository.SaleRepository,
	productRepo repository.ProductRepository,
	invTxRepo repository.InventoryTxRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	bus Publisher,
	log *zap.SugaredLogger,
) SalesService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &salesService{
		saleRepo:    saleRepo,
		productRepo: productRepo,
		invTxRepo:   invTxRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		bus:         bus,
		sanitizer:   review.NewMarkupSanitizer(),
		log:         log,
	}
}

func toSaleResponse(s *model.Sale) SaleResponse {
	res := SaleResponse{
		ID:          s.ID,
		BranchName:  s.BranchName,
		CashierName: s.CashierName,
		Total:       s.Total.StringFixed(2),
		Status:      s.Status,
		DeliveredAt: formatTime(s.DeliveredAt),
		CreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, it := range s.Items {
		res.Items = append(res.Items, SaleItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).StringFixed(2),
		})
	}
	return res
}

// Record stores a sale and takes its items out of stock. Every product row is locked for the
// duration of the transaction so concurrent checkouts cannot oversell.
func (s *salesService) Record(ctx context.Context, actor string, req RecordSaleRequest) (*SaleResponse, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("a sale needs at least one item: %w", ErrValidation)
	}

	sale := &model.Sale{
		BranchName:  strings.TrimSpace(s.sanitizer.Sanitize(req.BranchName)),
		CashierName: strings.TrimSpace(s.sanitizer.Sanitize(req.CashierName)),
		Status:      model.SaleCompleted,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		products := make([]*model.Product, len(req.Items))
		stockAfter := make([]int, len(req.Items))
		locked := make(map[uint]*model.Product, len(req.Items))
		total := decimal.Zero
		for i, item := range req.Items {
			if item.Quantity <= 0 {
				return fmt.Errorf("quantity for product %d must be positive: %w", item.ProductID, ErrValidation)
			}
			p, ok := locked[item.ProductID]
			if !ok {
				var err error
				if p, err = s.productRepo.FindByIDForUpdate(txCtx, item.ProductID); err != nil {
					return notFound("product", item.ProductID, err)
				}
				locked[item.ProductID] = p
			}
			if p.Quantity < item.Quantity {
				return fmt.Errorf("product %s has %d left, %d requested: %w", p.SKU, p.Quantity, item.Quantity, ErrInsufficientStock)
			}
			p.Quantity -= item.Quantity
			products[i] = p
			stockAfter[i] = p.Quantity
			total = total.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		sale.Total = total

		if err := s.saleRepo.Create(txCtx, sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}

		for i, item := range req.Items {
			p := products[i]
			line := model.SaleItem{
				SaleID:    sale.ID,
				ProductID: p.ID,
				Quantity:  item.Quantity,
				UnitPrice: p.UnitPrice,
			}
			if err := s.saleRepo.CreateItem(txCtx, &line); err != nil {
				return fmt.Errorf("failed to create sale item: %w", err)
			}
			sale.Items = append(sale.Items, line)

			if err := s.productRepo.UpdateStock(txCtx, p.ID, stockAfter[i]); err != nil {
				return fmt.Errorf("failed to update stock: %w", err)
			}
			saleID := sale.ID
			if err := s.invTxRepo.Create(txCtx, &model.InventoryTransaction{
				ProductID:       p.ID,
				SaleID:          &saleID,
				TransactionType: model.TxTypeOut,
				QuantityChanged: item.Quantity,
				StockAfter:      stockAfter[i],
			}); err != nil {
				return fmt.Errorf("failed to record inventory transaction: %w", err)
			}
		}

		return writeAudit(txCtx, s.auditRepo, actor, model.ActionRecordSale, model.EntitySale,
			entityID(sale.ID), sale.BranchName, map[string]any{"total": sale.Total.StringFixed(2), "items": len(req.Items)})
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("sale recorded", "sale_id", sale.ID, "branch", sale.BranchName, "total", sale.Total.StringFixed(2))
	publish(ctx, s.bus, s.log, events.TopicSaleRecorded, events.SaleEvent{
		SaleID: int64(sale.ID),
		Branch: sale.BranchName,
		Total:  sale.Total.StringFixed(2),
	})

	res := toSaleResponse(sale)
	return &res, nil
}

func (s *salesService) Get(ctx context.Context, id uint) (*SaleResponse, error) {
	sale, err := s.saleRepo.FindByIDWithItems(ctx, id)
	if err != nil {
		return nil, notFound("sale", id, err)
	}
	res := toSaleResponse(sale)
	return &res, nil
}

func (s *salesService) List(ctx context.Context, filter SaleFilter) ([]SaleResponse, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	sales, total, err := s.saleRepo.List(ctx, repository.SaleFilter{
		Status: filter.Status,
		Search: s.sanitizer.Sanitize(filter.Search),
		Branch: filter.Branch,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sales: %w", err)
	}

	res := make([]SaleResponse, 0, len(sales))
	for i := range sales {
		res = append(res, toSaleResponse(&sales[i]))
	}
	return res, total, nil
}

func (s *salesService) MarkDelivered(ctx context.Context, id uint, actor string) (*SaleResponse, error) {
	var sale *model.Sale
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		sale, err = s.saleRepo.FindByID(txCtx, id)
		if err != nil {
			return notFound("sale", id, err)
		}
		if sale.Status != model.SaleCompleted {
			return fmt.Errorf("sale %d is %s: %w", id, sale.Status, ErrInvalidState)
		}
		if sale.DeliveredAt != nil {
			return fmt.Errorf("sale %d was already delivered: %w", id, ErrInvalidState)
		}
		now := time.Now().UTC()
		sale.DeliveredAt = &now
		if err := s.saleRepo.Update(txCtx, sale); err != nil {
			return fmt.Errorf("failed to update sale: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionDeliverSale, model.EntitySale,
			entityID(id), sale.BranchName, nil)
	})
	if err != nil {
		return nil, err
	}

	res := toSaleResponse(sale)
	return &res, nil
}
