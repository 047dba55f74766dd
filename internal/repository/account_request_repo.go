package repository

import (
	"context"
	"strings"

	"retailops/internal/model"

	"gorm.io/gorm"
)

type AccountRequestFilter struct {
	Status string
	Search string
	Branch string
	Page   int
	Limit  int
}

type AccountRequestRepository interface {
	Create(ctx context.Context, req *model.AccountRequest) error
	Save(ctx context.Context, req *model.AccountRequest) error
	FindByID(ctx context.Context, id uint) (*model.AccountRequest, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.AccountRequest, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	List(ctx context.Context, filter AccountRequestFilter) ([]model.AccountRequest, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type accountRequestRepository struct {
	db *gorm.DB
}

func NewAccountRequestRepository(db *gorm.DB) AccountRequestRepository {
	return &accountRequestRepository{db: db}
}

func (r *accountRequestRepository) Create(ctx context.Context, req *model.AccountRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *accountRequestRepository) Save(ctx context.Context, req *model.AccountRequest) error {
	return GetDB(ctx, r.db).Save(req).Error
}

func (r *accountRequestRepository) FindByID(ctx context.Context, id uint) (*model.AccountRequest, error) {
	var req model.AccountRequest
	if err := GetDB(ctx, r.db).First(&req, "user_id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *accountRequestRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.AccountRequest, error) {
	var req model.AccountRequest
	if err := forUpdate(GetDB(ctx, r.db)).Where("user_id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *accountRequestRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.AccountRequest{}).
		Where("LOWER(username) = ? OR LOWER(email) = ?", strings.ToLower(username), strings.ToLower(email)).
		Count(&count).Error
	return count > 0, err
}

func (r *accountRequestRepository) List(ctx context.Context, filter AccountRequestFilter) ([]model.AccountRequest, int64, error) {
	var reqs []model.AccountRequest
	var total int64

	db := GetDB(ctx, r.db).Model(&model.AccountRequest{})
	if filter.Status != "" && filter.Status != "all" {
		db = db.Where("request_status = ?", strings.ToLower(filter.Status))
	}
	if filter.Branch != "" {
		db = db.Where("branch = ?", filter.Branch)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		db = db.Where("LOWER(full_name) LIKE ? OR LOWER(branch) LIKE ? OR LOWER(roles) LIKE ?", like, like, like)
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

func (r *accountRequestRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(GetDB(ctx, r.db), &model.AccountRequest{}, "request_status")
}

// countByStatus groups the rows of a model by its status column.
func countByStatus(db *gorm.DB, m any, column string) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.Model(m).
		Select(column + " as status, COUNT(*) as count").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
