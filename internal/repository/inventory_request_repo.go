package repository

import (
	"context"
	"strings"

	"retailops/internal/model"

	"gorm.io/gorm"
)

type InventoryRequestFilter struct {
	Status     string
	ActionType string
	Stage      string
	Branch     string
	Search     string
	Page       int
	Limit      int
}

type InventoryRequestRepository interface {
	Create(ctx context.Context, req *model.InventoryRequest) error
	Save(ctx context.Context, req *model.InventoryRequest) error
	FindByID(ctx context.Context, id uint) (*model.InventoryRequest, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.InventoryRequest, error)
	List(ctx context.Context, filter InventoryRequestFilter) ([]model.InventoryRequest, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type inventoryRequestRepository struct {
	db *gorm.DB
}

func NewInventoryRequestRepository(db *gorm.DB) InventoryRequestRepository {
	return &inventoryRequestRepository{db: db}
}

func (r *inventoryRequestRepository) Create(ctx context.Context, req *model.InventoryRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *inventoryRequestRepository) Save(ctx context.Context, req *model.InventoryRequest) error {
	return GetDB(ctx, r.db).Save(req).Error
}

func (r *inventoryRequestRepository) FindByID(ctx context.Context, id uint) (*model.InventoryRequest, error) {
	var req model.InventoryRequest
	if err := GetDB(ctx, r.db).First(&req, "pending_id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *inventoryRequestRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.InventoryRequest, error) {
	var req model.InventoryRequest
	if err := forUpdate(GetDB(ctx, r.db)).Where("pending_id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *inventoryRequestRepository) List(ctx context.Context, filter InventoryRequestFilter) ([]model.InventoryRequest, int64, error) {
	var reqs []model.InventoryRequest
	var total int64

	db := GetDB(ctx, r.db).Model(&model.InventoryRequest{})
	if filter.Status != "" && filter.Status != "all" {
		db = db.Where("status = ?", strings.ToLower(filter.Status))
	}
	if filter.ActionType != "" && filter.ActionType != "all" {
		db = db.Where("action_type = ?", strings.ToLower(filter.ActionType))
	}
	if filter.Stage != "" {
		db = db.Where("current_stage = ?", filter.Stage)
	}
	if filter.Branch != "" {
		db = db.Where("branch_name = ?", filter.Branch)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		db = db.Where("LOWER(payload) LIKE ? OR LOWER(branch_name) LIKE ? OR LOWER(created_by_name) LIKE ?", like, like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		db = db.Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit)
	}
	if err := db.Order("created_at desc").Find(&reqs).Error; err != nil {
		return nil, 0, err
	}

	return reqs, total, nil
}

func (r *inventoryRequestRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(GetDB(ctx, r.db), &model.InventoryRequest{}, "status")
}
