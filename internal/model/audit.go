package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionRegisterAccount = "REGISTER_ACCOUNT"
	ActionApproveAccount  = "APPROVE_ACCOUNT"
	ActionRejectAccount   = "REJECT_ACCOUNT"

	ActionSubmitInventoryRequest = "SUBMIT_INVENTORY_REQUEST"
	ActionManagerApprove         = "MANAGER_APPROVE"
	ActionAdminApprove           = "ADMIN_APPROVE"
	ActionRejectInventoryRequest = "REJECT_INVENTORY_REQUEST"
	ActionRequestChanges         = "REQUEST_CHANGES"
	ActionResubmitRequest        = "RESUBMIT_REQUEST"
	ActionCreateProduct          = "CREATE_PRODUCT"
	ActionUpdateProduct          = "UPDATE_PRODUCT"

	ActionRecordSale  = "RECORD_SALE"
	ActionDeliverSale = "DELIVER_SALE"
)

// Audited entity types
const (
	EntityAccountRequest   = "account_request"
	EntityInventoryRequest = "inventory_request"
	EntityProduct          = "product"
	EntitySale             = "sale"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Actor      string    `gorm:"type:varchar(255);index" json:"actor"` // empty for system actions
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityType string    `gorm:"type:varchar(50);index:idx_audit_entity" json:"entity_type"`
	EntityID   string    `gorm:"type:varchar(50);index:idx_audit_entity" json:"entity_id"`
	EntityName string    `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string    `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns the id client-side so the same model works on databases without
// gen_random_uuid().
func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
