package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"retailops/internal/events"
	"retailops/internal/model"
	"retailops/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrForbidden         = errors.New("not permitted")
)

// StageAllows reports whether role may decide an inventory request at stage. Admin review is
// closed to managers.
func StageAllows(role, stage string) bool {
	switch role {
	case model.RoleOwner, model.RoleAdmin:
		return true
	case model.RoleManager:
		return stage != model.StageAdminReview
	}
	return false
}

// Publisher is the part of the event bus services need.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

func notFound(what string, id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", what, id, err)
}

func writeAudit(ctx context.Context, repo repository.AuditRepository, actor, action, entityType, entityID, entityName string, details map[string]any) error {
	raw, _ := json.Marshal(details)
	entry := &model.AuditLog{
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(raw),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// publish sends an event after the owning transaction committed. Delivery failures never fail
// the request.
func publish(ctx context.Context, bus Publisher, log *zap.SugaredLogger, topic string, data any) {
	if bus == nil {
		return
	}
	if err := bus.Publish(context.WithoutCancel(ctx), events.NewEvent(topic, data)); err != nil {
		log.Warnw("event publish failed", "topic", topic, "error", err)
	}
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return page, limit
}
