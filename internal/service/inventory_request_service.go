package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
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
type SubmitInventoryRequest struct {
	ActionType          string         `json:"action_type" binding:"required,oneof=add update"`
	ProductID           *uint          `json:"product_id"`
	ProductData         map[string]any `json:"productData" binding:"required"`
	BranchName          string         `json:"branch_name" binding:"required"`
	CreatedByID         uint           `json:"created_by"`
	CreatedByName       string         `json:"created_by_name"`
	RequiresAdminReview bool           `json:"requires_admin_review"`
}

type RequestChangesDTO struct {
	ChangeType string `json:"change_type"`
	Comment    string `json:"comment" binding:"required"`
}

type ResubmitInventoryRequest struct {
	ProductData map[string]any `json:"productData" binding:"required"`
}

type InventoryRequestFilter struct {
	Status     string
	ActionType string
	Stage      string
	Branch     string
	Search     string
	Page       int
	Limit      int
}

// InventoryRequestResponse mirrors the review board's inventory request record.
type InventoryRequestResponse struct {
	PendingID           uint                    `json:"pending_id"`
	ActionType          string                  `json:"action_type"`
	ProductID           *uint                   `json:"product_id,omitempty"`
	Payload             review.InventoryPayload `json:"payload"`
	Status              string                  `json:"status"`
	CurrentStage        string                  `json:"current_stage"`
	BranchName          string                  `json:"branch_name"`
	CreatedByID         uint                    `json:"created_by,omitempty"`
	CreatedByName       string                  `json:"created_by_name"`
	CreatedAt           string                  `json:"created_at"`
	ManagerApproverName string                  `json:"manager_approver_name,omitempty"`
	ManagerApprovedAt   string                  `json:"manager_approved_at,omitempty"`
	AdminApproverName   string                  `json:"admin_approver_name,omitempty"`
	AdminApprovedAt     string                  `json:"admin_approved_at,omitempty"`
	ChangeType          string                  `json:"change_type,omitempty"`
	ChangeComment       string                  `json:"change_comment,omitempty"`
	RejectionReason     string                  `json:"rejection_reason,omitempty"`
	RequiresAdminReview bool                    `json:"requires_admin_review"`
}

type RequestStatusSummary struct {
	Pending          int64 `json:"pending"`
	Approved         int64 `json:"approved"`
	Rejected         int64 `json:"rejected"`
	ChangesRequested int64 `json:"changes_requested"`
	Total            int64 `json:"total"`
}

type HistoryEntry struct {
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type InventoryRequestService interface {
	Submit(ctx context.Context, req SubmitInventoryRequest) (*InventoryRequestResponse, error)
	List(ctx context.Context, filter InventoryRequestFilter) ([]InventoryRequestResponse, int64, error)
	Get(ctx context.Context, id uint) (*InventoryRequestResponse, error)
	Approve(ctx context.Context, id uint, actor string) (*InventoryRequestResponse, error)
	Reject(ctx context.Context, id uint, actor, reason string) (*InventoryRequestResponse, error)
	RequestChanges(ctx context.Context, id uint, actor string, req RequestChangesDTO) (*InventoryRequestResponse, error)
	Resubmit(ctx context.Context, id uint, actor string, req ResubmitInventoryRequest) (*InventoryRequestResponse, error)
	History(ctx context.Context, id uint) ([]HistoryEntry, error)
	StatusSummary(ctx context.Context) (*RequestStatusSummary, error)
}

type inventoryRequestService struct {
	repo        repository.InventoryRequestRepository
	productRepo repository.ProductRepository
	invTxRepo   repository.InventoryTxRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	bus         Publisher
	sanitizer   review.Sanitizer
	log         *zap.SugaredLogger
}

func NewInventoryRequestService(
	repo repository.InventoryRequestRepository,
	productRepo repository.ProductRepository,
	invTxRepo repository.InventoryTxRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	bus Publisher,
	log *zap.SugaredLogger,
) InventoryRequestService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &inventoryRequestService{
		repo:        repo,
		productRepo: productRepo,
		invTxRepo:   invTxRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		bus:         bus,
		sanitizer:   review.NewMarkupSanitizer(),
		log:         log,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func decodePayload(ir *model.InventoryRequest) (review.InventoryPayload, error) {
	var payload review.InventoryPayload
	if err := json.Unmarshal([]byte(ir.Payload), &payload); err != nil {
		return payload, fmt.Errorf("inventory request %d has a corrupt payload: %w", ir.PendingID, err)
	}
	return payload, nil
}

// toResponse renders r. A corrupt payload is logged and rendered as empty product data.
func (s *inventoryRequestService) toResponse(r *model.InventoryRequest) InventoryRequestResponse {
	payload, err := decodePayload(r)
	if err != nil {
		s.log.Errorw("render inventory request", "pending_id", r.PendingID, "error", err)
		payload = review.InventoryPayload{}
	}
	if payload.ProductData == nil {
		payload.ProductData = map[string]any{}
	}
	return InventoryRequestResponse{
		PendingID:           r.PendingID,
		ActionType:          r.ActionType,
		ProductID:           r.ProductID,
		Payload:             payload,
		Status:              r.Status,
		CurrentStage:        r.CurrentStage,
		BranchName:          r.BranchName,
		CreatedByID:         r.CreatedByID,
		CreatedByName:       r.CreatedByName,
		CreatedAt:           r.CreatedAt.UTC().Format(time.RFC3339),
		ManagerApproverName: r.ManagerApproverName,
		ManagerApprovedAt:   formatTime(r.ManagerApprovedAt),
		AdminApproverName:   r.AdminApproverName,
		AdminApprovedAt:     formatTime(r.AdminApprovedAt),
		ChangeType:          r.ChangeType,
		ChangeComment:       r.ChangeComment,
		RejectionReason:     r.RejectionReason,
		RequiresAdminReview: r.RequiresAdminReview,
	}
}

func entityID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// sanitizeProductData cleans every string value of the proposed product.
func (s *inventoryRequestService) sanitizeProductData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if str, ok := v.(string); ok {
			v = strings.TrimSpace(s.sanitizer.Sanitize(str))
		}
		out[k] = v
	}
	return out
}

func productSnapshot(p *model.Product) map[string]any {
	snap := map[string]any{
		"sku":         p.SKU,
		"name":        p.Name,
		"branch_name": p.BranchName,
		"quantity":    p.Quantity,
		"unit_price":  p.UnitPrice.String(),
	}
	if p.ExpiryDate != nil {
		snap["expiry_date"] = p.ExpiryDate.UTC().Format("2006-01-02")
	}
	return snap
}

func (s *inventoryRequestService) Submit(ctx context.Context, req SubmitInventoryRequest) (*InventoryRequestResponse, error) {
	data := s.sanitizeProductData(req.ProductData)
	payload := review.InventoryPayload{ProductData: data}

	switch req.ActionType {
	case model.ActionTypeAdd:
		if err := validateNewProduct(data); err != nil {
			return nil, err
		}
	case model.ActionTypeUpdate:
		if req.ProductID == nil {
			return nil, fmt.Errorf("product_id is required for updates: %w", ErrValidation)
		}
		product, err := s.productRepo.FindByID(ctx, *req.ProductID)
		if err != nil {
			return nil, notFound("product", *req.ProductID, err)
		}
		payload.CurrentState = productSnapshot(product)
	default:
		return nil, fmt.Errorf("unknown action type %q: %w", req.ActionType, ErrValidation)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	ir := &model.InventoryRequest{
		ActionType:          req.ActionType,
		ProductID:           req.ProductID,
		Payload:             string(raw),
		Status:              model.RequestPending,
		CurrentStage:        model.StageManagerReview,
		BranchName:          strings.TrimSpace(s.sanitizer.Sanitize(req.BranchName)),
		CreatedByID:         req.CreatedByID,
		CreatedByName:       strings.TrimSpace(s.sanitizer.Sanitize(req.CreatedByName)),
		RequiresAdminReview: req.RequiresAdminReview,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, ir); err != nil {
			return fmt.Errorf("failed to create inventory request: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, ir.CreatedByName, model.ActionSubmitInventoryRequest,
			model.EntityInventoryRequest, entityID(ir.PendingID), stringField(data, "name", "product_name"),
			map[string]any{"action_type": ir.ActionType, "branch": ir.BranchName})
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("inventory request submitted", "pending_id", ir.PendingID, "action_type", ir.ActionType)
	publish(ctx, s.bus, s.log, events.TopicRequestCreated, events.RequestEvent{
		Kind:   review.KindInventory,
		ID:     int64(ir.PendingID),
		Status: ir.Status,
		Branch: ir.BranchName,
	})

	res := s.toResponse(ir)
	return &res, nil
}

func (s *inventoryRequestService) List(ctx context.Context, filter InventoryRequestFilter) ([]InventoryRequestResponse, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	reqs, total, err := s.repo.List(ctx, repository.InventoryRequestFilter{
		Status:     filter.Status,
		ActionType: filter.ActionType,
		Stage:      filter.Stage,
		Branch:     filter.Branch,
		Search:     s.sanitizer.Sanitize(filter.Search),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list inventory requests: %w", err)
	}

	res := make([]InventoryRequestResponse, 0, len(reqs))
	for i := range reqs {
		res = append(res, s.toResponse(&reqs[i]))
	}
	return res, total, nil
}

func (s *inventoryRequestService) Get(ctx context.Context, id uint) (*InventoryRequestResponse, error) {
	ir, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("inventory request", id, err)
	}
	res := s.toResponse(ir)
	return &res, nil
}

// Approve advances a pending request one review stage. Requests flagged for admin review stop at
// admin_review after the manager approves; everything else is applied to stock immediately.
func (s *inventoryRequestService) Approve(ctx context.Context, id uint, actor string) (*InventoryRequestResponse, error) {
	var ir *model.InventoryRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		ir, err = s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFound("inventory request", id, err)
		}
		if !review.IsPending(ir.Status) {
			return fmt.Errorf("inventory request %d is %s: %w", id, ir.Status, ErrInvalidState)
		}

		now := time.Now().UTC()
		action := model.ActionManagerApprove
		switch ir.CurrentStage {
		case model.StageManagerReview:
			ir.ManagerApproverName = actor
			ir.ManagerApprovedAt = &now
			if ir.RequiresAdminReview {
				ir.CurrentStage = model.StageAdminReview
				if err := s.repo.Save(txCtx, ir); err != nil {
					return fmt.Errorf("failed to update inventory request: %w", err)
				}
				return writeAudit(txCtx, s.auditRepo, actor, action, model.EntityInventoryRequest,
					entityID(id), "", map[string]any{"next_stage": ir.CurrentStage})
			}
		case model.StageAdminReview:
			ir.AdminApproverName = actor
			ir.AdminApprovedAt = &now
			action = model.ActionAdminApprove
		default:
			return fmt.Errorf("inventory request %d is at stage %s: %w", id, ir.CurrentStage, ErrInvalidState)
		}

		if err := s.apply(txCtx, ir, actor); err != nil {
			return err
		}
		ir.Status = model.RequestApproved
		ir.CurrentStage = model.StageCompleted
		if err := s.repo.Save(txCtx, ir); err != nil {
			return fmt.Errorf("failed to update inventory request: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, action, model.EntityInventoryRequest,
			entityID(id), "", map[string]any{"product_id": ir.ProductID})
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("inventory request approved", "pending_id", id, "stage", ir.CurrentStage, "actor", actor)
	s.publishDecision(ctx, ir, actor)

	res := s.toResponse(ir)
	return &res, nil
}

// apply writes the proposed product to stock and records the movement.
func (s *inventoryRequestService) apply(ctx context.Context, ir *model.InventoryRequest, actor string) error {
	payload, err := decodePayload(ir)
	if err != nil {
		return err
	}
	data := payload.ProductData

	var (
		product  *model.Product
		previous int
		action   string
	)
	switch ir.ActionType {
	case model.ActionTypeAdd:
		if err := validateNewProduct(data); err != nil {
			return err
		}
		price, _ := decimalField(data, "unit_price", "price")
		qty, _ := intField(data, "quantity")
		product = &model.Product{
			SKU:        stringField(data, "sku"),
			Name:       stringField(data, "name", "product_name"),
			BranchName: ir.BranchName,
			Quantity:   qty,
			UnitPrice:  price,
			ExpiryDate: timeField(data, "expiry_date"),
		}
		if branch := stringField(data, "branch_name"); branch != "" {
			product.BranchName = branch
		}
		if err := s.productRepo.Create(ctx, product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		ir.ProductID = &product.ID
		action = model.ActionCreateProduct
	case model.ActionTypeUpdate:
		if ir.ProductID == nil {
			return fmt.Errorf("inventory request %d has no product: %w", ir.PendingID, ErrInvalidState)
		}
		product, err = s.productRepo.FindByIDForUpdate(ctx, *ir.ProductID)
		if err != nil {
			return notFound("product", *ir.ProductID, err)
		}
		previous = product.Quantity
		if v := stringField(data, "sku"); v != "" {
			product.SKU = v
		}
		if v := stringField(data, "name", "product_name"); v != "" {
			product.Name = v
		}
		if v := stringField(data, "branch_name"); v != "" {
			product.BranchName = v
		}
		if v, ok := intField(data, "quantity"); ok {
			product.Quantity = v
		}
		if v, ok := decimalField(data, "unit_price", "price"); ok {
			product.UnitPrice = v
		}
		if v := timeField(data, "expiry_date"); v != nil {
			product.ExpiryDate = v
		}
		if err := s.productRepo.Update(ctx, product); err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		action = model.ActionUpdateProduct
	default:
		return fmt.Errorf("unknown action type %q: %w", ir.ActionType, ErrInvalidState)
	}

	if delta := product.Quantity - previous; delta != 0 {
		txType := model.TxTypeIn
		if delta < 0 {
			txType = model.TxTypeOut
			delta = -delta
		}
		requestID := ir.PendingID
		if err := s.invTxRepo.Create(ctx, &model.InventoryTransaction{
			ProductID:       product.ID,
			RequestID:       &requestID,
			TransactionType: txType,
			QuantityChanged: delta,
			StockAfter:      product.Quantity,
		}); err != nil {
			return fmt.Errorf("failed to record inventory transaction: %w", err)
		}
	}

	return writeAudit(ctx, s.auditRepo, actor, action, model.EntityProduct, entityID(product.ID), product.Name,
		map[string]any{"request_id": ir.PendingID, "quantity": product.Quantity})
}

func (s *inventoryRequestService) Reject(ctx context.Context, id uint, actor, reason string) (*InventoryRequestResponse, error) {
	reason = strings.TrimSpace(s.sanitizer.Sanitize(reason))
	var ir *model.InventoryRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		ir, err = s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFound("inventory request", id, err)
		}
		if ir.Status != model.RequestPending && ir.Status != model.RequestChangesRequested {
			return fmt.Errorf("inventory request %d is already %s: %w", id, ir.Status, ErrInvalidState)
		}
		ir.Status = model.RequestRejected
		ir.CurrentStage = model.StageCompleted
		ir.RejectionReason = reason
		if err := s.repo.Save(txCtx, ir); err != nil {
			return fmt.Errorf("failed to update inventory request: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionRejectInventoryRequest,
			model.EntityInventoryRequest, entityID(id), "", map[string]any{"reason": reason})
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("inventory request rejected", "pending_id", id, "actor", actor)
	s.publishDecision(ctx, ir, actor)

	res := s.toResponse(ir)
	return &res, nil
}

// RequestChanges sends a pending request back to its author. The request re-enters manager review
// once resubmitted.
func (s *inventoryRequestService) RequestChanges(ctx context.Context, id uint, actor string, req RequestChangesDTO) (*InventoryRequestResponse, error) {
	comment := strings.TrimSpace(s.sanitizer.Sanitize(req.Comment))
	if comment == "" {
		return nil, fmt.Errorf("%s: %w", review.ErrCommentRequired, ErrValidation)
	}
	changeType := strings.TrimSpace(s.sanitizer.Sanitize(req.ChangeType))
	if changeType == "" {
		changeType = "general"
	}

	var ir *model.InventoryRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		ir, err = s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFound("inventory request", id, err)
		}
		if !review.IsPending(ir.Status) {
			return fmt.Errorf("inventory request %d is %s: %w", id, ir.Status, ErrInvalidState)
		}
		ir.Status = model.RequestChangesRequested
		ir.CurrentStage = model.StageManagerReview
		ir.ChangeType = changeType
		ir.ChangeComment = comment
		if err := s.repo.Save(txCtx, ir); err != nil {
			return fmt.Errorf("failed to update inventory request: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionRequestChanges, model.EntityInventoryRequest,
			entityID(id), "", map[string]any{"change_type": changeType, "comment": comment})
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("inventory request changes requested", "pending_id", id, "change_type", changeType, "actor", actor)
	s.publishDecision(ctx, ir, actor)

	res := s.toResponse(ir)
	return &res, nil
}

func (s *inventoryRequestService) Resubmit(ctx context.Context, id uint, actor string, req ResubmitInventoryRequest) (*InventoryRequestResponse, error) {
	data := s.sanitizeProductData(req.ProductData)

	var ir *model.InventoryRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		ir, err = s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFound("inventory request", id, err)
		}
		if ir.Status != model.RequestChangesRequested {
			return fmt.Errorf("inventory request %d is %s: %w", id, ir.Status, ErrInvalidState)
		}
		if ir.ActionType == model.ActionTypeAdd {
			if err := validateNewProduct(data); err != nil {
				return err
			}
		}

		payload, err := decodePayload(ir)
		if err != nil {
			return err
		}
		payload.ProductData = data
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}

		ir.Payload = string(raw)
		ir.Status = model.RequestPending
		ir.CurrentStage = model.StageManagerReview
		ir.ManagerApproverName = ""
		ir.ManagerApprovedAt = nil
		if err := s.repo.Save(txCtx, ir); err != nil {
			return fmt.Errorf("failed to update inventory request: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionResubmitRequest, model.EntityInventoryRequest,
			entityID(id), stringField(data, "name", "product_name"), map[string]any{"previous_change_type": ir.ChangeType})
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.bus, s.log, events.TopicRequestCreated, events.RequestEvent{
		Kind:   review.KindInventory,
		ID:     int64(ir.PendingID),
		Status: ir.Status,
		Actor:  actor,
		Branch: ir.BranchName,
	})

	res := s.toResponse(ir)
	return &res, nil
}

func (s *inventoryRequestService) History(ctx context.Context, id uint) ([]HistoryEntry, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFound("inventory request", id, err)
	}
	logs, err := s.auditRepo.History(ctx, model.EntityInventoryRequest, entityID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	res := make([]HistoryEntry, 0, len(logs))
	for _, l := range logs {
		entry := HistoryEntry{
			Action:    l.Action,
			Actor:     l.Actor,
			CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
		}
		if l.Details != "" {
			if err := json.Unmarshal([]byte(l.Details), &entry.Details); err != nil {
				s.log.Warnw("unreadable audit details", "pending_id", id, "audit_id", l.ID, "error", err)
				entry.Details = nil
			}
		}
		res = append(res, entry)
	}
	return res, nil
}

func (s *inventoryRequestService) StatusSummary(ctx context.Context) (*RequestStatusSummary, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count inventory requests: %w", err)
	}
	sum := &RequestStatusSummary{
		Pending:          counts[model.RequestPending],
		Approved:         counts[model.RequestApproved],
		Rejected:         counts[model.RequestRejected],
		ChangesRequested: counts[model.RequestChangesRequested],
	}
	for _, n := range counts {
		sum.Total += n
	}
	return sum, nil
}

func (s *inventoryRequestService) publishDecision(ctx context.Context, ir *model.InventoryRequest, actor string) {
	publish(ctx, s.bus, s.log, events.TopicRequestDecided, events.RequestEvent{
		Kind:     review.KindInventory,
		ID:       int64(ir.PendingID),
		Status:   ir.Status,
		Actor:    actor,
		Branch:   ir.BranchName,
		Decision: ir.CurrentStage,
	})
}

func validateNewProduct(data map[string]any) error {
	if stringField(data, "name", "product_name") == "" {
		return fmt.Errorf("product name is required: %w", ErrValidation)
	}
	if stringField(data, "sku") == "" {
		return fmt.Errorf("sku is required: %w", ErrValidation)
	}
	price, ok := decimalField(data, "unit_price", "price")
	if !ok || price.IsNegative() {
		return fmt.Errorf("a non-negative unit_price is required: %w", ErrValidation)
	}
	if qty, ok := intField(data, "quantity"); ok && qty < 0 {
		return fmt.Errorf("quantity cannot be negative: %w", ErrValidation)
	}
	return nil
}

func stringField(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func intField(data map[string]any, key string) (int, bool) {
	switch v := data[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

func decimalField(data map[string]any, keys ...string) (decimal.Decimal, bool) {
	for _, k := range keys {
		switch v := data[k].(type) {
		case float64:
			return decimal.NewFromFloat(v), true
		case int:
			return decimal.NewFromInt(int64(v)), true
		case string:
			if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

func timeField(data map[string]any, key string) *time.Time {
	raw, ok := data[key].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	t := review.ParseTimestamp(raw)
	if t.Equal(time.Unix(0, 0).UTC()) {
		return nil
	}
	return &t
}
