package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"retailops/internal/events"
	"retailops/internal/model"
	"retailops/internal/repository"
	"retailops/internal/review"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DTOs
type RegisterAccountRequest struct {
	FullName      string   `json:"full_name" binding:"required"`
	Username      string   `json:"username" binding:"required"`
	Email         string   `json:"email" binding:"required,email"`
	Password      string   `json:"password" binding:"required,min=6"`
	Branch        string   `json:"branch" binding:"required"`
	Roles         []string `json:"role" binding:"required,min=1"`
	CreatedByName string   `json:"created_by_name"`
}

type AccountRequestFilter struct {
	Status string
	Search string
	Branch string
	Page   int
	Limit  int
}

// AccountRequestResponse mirrors the review board's user request record.
type AccountRequestResponse struct {
	UserID          uint     `json:"user_id"`
	FullName        string   `json:"full_name"`
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	Branch          string   `json:"branch"`
	Roles           []string `json:"role"`
	RequestStatus   string   `json:"request_status"`
	RejectionReason string   `json:"rejection_reason,omitempty"`
	CreatedByName   string   `json:"created_by_name"`
	DecidedBy       string   `json:"decided_by,omitempty"`
	DecidedAt       string   `json:"decided_at,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

type AccountService interface {
	Register(ctx context.Context, req RegisterAccountRequest) (*AccountRequestResponse, error)
	List(ctx context.Context, filter AccountRequestFilter) ([]AccountRequestResponse, int64, error)
	Approve(ctx context.Context, id uint, actor string) (*AccountRequestResponse, error)
	Reject(ctx context.Context, id uint, actor, reason string) (*AccountRequestResponse, error)
}

type accountService struct {
	repo      repository.AccountRequestRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	bus       Publisher
	sanitizer review.Sanitizer
	log       *zap.SugaredLogger
}

func NewAccountService(
	repo repository.AccountRequestRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	bus Publisher,
	log *zap.SugaredLogger,
) AccountService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &accountService{
		repo:      repo,
		auditRepo: auditRepo,
		txManager: txManager,
		bus:       bus,
		sanitizer: review.NewMarkupSanitizer(),
		log:       log,
	}
}

func toAccountResponse(r *model.AccountRequest) AccountRequestResponse {
	res := AccountRequestResponse{
		UserID:          r.UserID,
		FullName:        r.FullName,
		Username:        r.Username,
		Email:           r.Email,
		Branch:          r.Branch,
		Roles:           r.RoleList(),
		RequestStatus:   r.RequestStatus,
		RejectionReason: r.RejectionReason,
		CreatedByName:   r.CreatedByName,
		DecidedBy:       r.DecidedBy,
		CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.DecidedAt != nil {
		res.DecidedAt = r.DecidedAt.UTC().Format(time.RFC3339)
	}
	if res.Roles == nil {
		res.Roles = []string{}
	}
	return res
}

func (s *accountService) Register(ctx context.Context, req RegisterAccountRequest) (*AccountRequestResponse, error) {
	fullName := strings.TrimSpace(s.sanitizer.Sanitize(req.FullName))
	username := strings.ToLower(strings.TrimSpace(s.sanitizer.Sanitize(req.Username)))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if fullName == "" || username == "" {
		return nil, fmt.Errorf("full name and username are required: %w", ErrValidation)
	}
	roles := model.JoinRoles(req.Roles)
	if roles == "" {
		return nil, fmt.Errorf("at least one role is required: %w", ErrValidation)
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing requests: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("username or email: %w", ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acc := &model.AccountRequest{
		FullName:      fullName,
		Username:      username,
		Email:         email,
		PasswordHash:  string(hash),
		Branch:        strings.TrimSpace(s.sanitizer.Sanitize(req.Branch)),
		Roles:         roles,
		RequestStatus: model.RequestPending,
		CreatedByName: strings.TrimSpace(s.sanitizer.Sanitize(req.CreatedByName)),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, acc); err != nil {
			return fmt.Errorf("failed to create account request: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, acc.CreatedByName, model.ActionRegisterAccount,
			model.EntityAccountRequest, strconv.FormatUint(uint64(acc.UserID), 10), acc.FullName,
			map[string]any{"branch": acc.Branch, "roles": acc.RoleList()})
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("account request registered", "user_id", acc.UserID, "branch", acc.Branch)
	publish(ctx, s.bus, s.log, events.TopicRequestCreated, events.RequestEvent{
		Kind:   review.KindUser,
		ID:     int64(acc.UserID),
		Status: acc.RequestStatus,
		Branch: acc.Branch,
	})

	res := toAccountResponse(acc)
	return &res, nil
}

func (s *accountService) List(ctx context.Context, filter AccountRequestFilter) ([]AccountRequestResponse, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	reqs, total, err := s.repo.List(ctx, repository.AccountRequestFilter{
		Status: filter.Status,
		Search: s.sanitizer.Sanitize(filter.Search),
		Branch: filter.Branch,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list account requests: %w", err)
	}

	res := make([]AccountRequestResponse, 0, len(reqs))
	for i := range reqs {
		res = append(res, toAccountResponse(&reqs[i]))
	}
	return res, total, nil
}

func (s *accountService) Approve(ctx context.Context, id uint, actor string) (*AccountRequestResponse, error) {
	return s.decide(ctx, id, actor, model.RequestApproved, "")
}

func (s *accountService) Reject(ctx context.Context, id uint, actor, reason string) (*AccountRequestResponse, error) {
	return s.decide(ctx, id, actor, model.RequestRejected, strings.TrimSpace(s.sanitizer.Sanitize(reason)))
}

func (s *accountService) decide(ctx context.Context, id uint, actor, status, reason string) (*AccountRequestResponse, error) {
	var acc *model.AccountRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		acc, err = s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFound("account request", id, err)
		}
		if !review.IsPending(acc.RequestStatus) {
			return fmt.Errorf("account request %d is already %s: %w", id, acc.RequestStatus, ErrInvalidState)
		}

		now := time.Now().UTC()
		acc.RequestStatus = status
		acc.RejectionReason = reason
		acc.DecidedBy = actor
		acc.DecidedAt = &now
		if err := s.repo.Save(txCtx, acc); err != nil {
			return fmt.Errorf("failed to update account request: %w", err)
		}

		action := model.ActionApproveAccount
		details := map[string]any{"branch": acc.Branch}
		if status == model.RequestRejected {
			action = model.ActionRejectAccount
			details["reason"] = reason
		}
		return writeAudit(txCtx, s.auditRepo, actor, action, model.EntityAccountRequest,
			strconv.FormatUint(uint64(id), 10), acc.FullName, details)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("account request decided", "user_id", id, "status", status, "actor", actor)
	publish(ctx, s.bus, s.log, events.TopicRequestDecided, events.RequestEvent{
		Kind:     review.KindUser,
		ID:       int64(id),
		Status:   status,
		Actor:    actor,
		Branch:   acc.Branch,
		Decision: status,
	})

	res := toAccountResponse(acc)
	return &res, nil
}
