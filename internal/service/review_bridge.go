package service

import (
	"context"
	"fmt"

	"retailops/internal/model"
	"retailops/internal/review"
)

const DefaultReviewWindow = 500

// ReviewBridge feeds review sessions from the request and sales services and turns their
// actions back into service calls on behalf of one actor.
type ReviewBridge struct {
	accounts  AccountService
	inventory InventoryRequestService
	sales     SalesService
	window    int
}

func NewReviewBridge(accounts AccountService, inventory InventoryRequestService, sales SalesService, window int) *ReviewBridge {
	if window <= 0 {
		window = DefaultReviewWindow
	}
	return &ReviewBridge{accounts: accounts, inventory: inventory, sales: sales, window: window}
}

var _ review.Source = (*ReviewBridge)(nil)

func (b *ReviewBridge) UserRequests(ctx context.Context) ([]review.UserAccountRequest, error) {
	reqs, _, err := b.accounts.List(ctx, AccountRequestFilter{Status: model.RequestPending, Page: 1, Limit: b.window})
	if err != nil {
		return nil, err
	}
	out := make([]review.UserAccountRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, review.UserAccountRequest{
			UserID:        int64(r.UserID),
			FullName:      r.FullName,
			Branch:        r.Branch,
			Role:          r.Roles,
			RequestStatus: r.RequestStatus,
			CreatedAt:     r.CreatedAt,
			CreatedByName: r.CreatedByName,
		})
	}
	return out, nil
}

func (b *ReviewBridge) InventoryRequests(ctx context.Context) ([]review.InventoryChangeRequest, error) {
	reqs, _, err := b.inventory.List(ctx, InventoryRequestFilter{Status: model.RequestPending, Page: 1, Limit: b.window})
	if err != nil {
		return nil, err
	}
	out := make([]review.InventoryChangeRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, review.InventoryChangeRequest{
			PendingID:           int64(r.PendingID),
			ActionType:          r.ActionType,
			Payload:             r.Payload,
			RequestStatus:       r.Status,
			CurrentStage:        r.CurrentStage,
			BranchName:          r.BranchName,
			CreatedByID:         int64(r.CreatedByID),
			CreatedByName:       r.CreatedByName,
			CreatedAt:           r.CreatedAt,
			ManagerApproverName: r.ManagerApproverName,
			ManagerApprovedAt:   r.ManagerApprovedAt,
		})
	}
	return out, nil
}

func (b *ReviewBridge) Sales(ctx context.Context) ([]review.SaleRow, error) {
	sales, _, err := b.sales.List(ctx, SaleFilter{Page: 1, Limit: b.window})
	if err != nil {
		return nil, err
	}
	out := make([]review.SaleRow, 0, len(sales))
	for _, s := range sales {
		out = append(out, review.SaleRow{
			ID:          int64(s.ID),
			Status:      s.Status,
			BranchName:  s.BranchName,
			CashierName: s.CashierName,
			CreatedAt:   s.CreatedAt,
		})
	}
	return out, nil
}

// Actions binds the review dispatcher callbacks to actor. Account decisions are left nil for
// everyone but the owner, and inventory decisions respect the review stage role rules.
// Refresh callbacks are left to the session, which reloads through the Source.
func (b *ReviewBridge) Actions(actor, role string) review.Callbacks {
	cb := review.Callbacks{
		ApproveInventory: func(ctx context.Context, id int64) error {
			if err := b.checkStage(ctx, uint(id), role); err != nil {
				return err
			}
			_, err := b.inventory.Approve(ctx, uint(id), actor)
			return err
		},
		RejectInventory: func(ctx context.Context, id int64, reason string) error {
			if err := b.checkStage(ctx, uint(id), role); err != nil {
				return err
			}
			_, err := b.inventory.Reject(ctx, uint(id), actor, reason)
			return err
		},
		RequestChanges: func(ctx context.Context, id int64, changeType, comment string) error {
			if err := b.checkStage(ctx, uint(id), role); err != nil {
				return err
			}
			_, err := b.inventory.RequestChanges(ctx, uint(id), actor, RequestChangesDTO{ChangeType: changeType, Comment: comment})
			return err
		},
	}
	if role == model.RoleOwner {
		cb.ApproveAccount = func(ctx context.Context, id int64) error {
			_, err := b.accounts.Approve(ctx, uint(id), actor)
			return err
		}
		cb.RejectAccount = func(ctx context.Context, id int64, reason string) error {
			_, err := b.accounts.Reject(ctx, uint(id), actor, reason)
			return err
		}
	}
	return cb
}

func (b *ReviewBridge) checkStage(ctx context.Context, id uint, role string) error {
	req, err := b.inventory.Get(ctx, id)
	if err != nil {
		return err
	}
	if !StageAllows(role, req.CurrentStage) {
		return fmt.Errorf("%s cannot decide inventory request %d at %s: %w", role, id, req.CurrentStage, ErrForbidden)
	}
	return nil
}
