package model

import "time"

// Inventory request action types
const (
	ActionTypeAdd    = "add"
	ActionTypeUpdate = "update"
)

// Inventory request statuses; pending/approved/rejected are shared with account requests.
const (
	RequestChangesRequested = "changes_requested"
)

// Review stages
const (
	StageManagerReview = "manager_review"
	StageAdminReview   = "admin_review"
	StageCompleted     = "completed"
)

// InventoryRequest is a proposed product add/update that must pass manager review and, when
// flagged, admin review before it touches stock.
type InventoryRequest struct {
	PendingID           uint       `gorm:"primaryKey;autoIncrement" json:"pending_id"`
	ActionType          string     `gorm:"type:varchar(10);not null;index" json:"action_type"`
	ProductID           *uint      `gorm:"index" json:"product_id,omitempty"`
	Payload             string     `gorm:"type:jsonb;not null" json:"-"` // {"productData": {...}, "currentState": {...}}
	Status              string     `gorm:"type:varchar(30);not null;default:'pending';index" json:"status"`
	CurrentStage        string     `gorm:"type:varchar(30);not null;default:'manager_review'" json:"current_stage"`
	BranchName          string     `gorm:"type:varchar(100);index" json:"branch_name"`
	CreatedByID         uint       `gorm:"index" json:"created_by"`
	CreatedByName       string     `gorm:"type:varchar(255)" json:"created_by_name"`
	ManagerApproverName string     `gorm:"type:varchar(255)" json:"manager_approver_name,omitempty"`
	ManagerApprovedAt   *time.Time `json:"manager_approved_at,omitempty"`
	AdminApproverName   string     `gorm:"type:varchar(255)" json:"admin_approver_name,omitempty"`
	AdminApprovedAt     *time.Time `json:"admin_approved_at,omitempty"`
	ChangeType          string     `gorm:"type:varchar(50)" json:"change_type,omitempty"`
	ChangeComment       string     `gorm:"type:text" json:"change_comment,omitempty"`
	RejectionReason     string     `gorm:"type:text" json:"rejection_reason,omitempty"`
	RequiresAdminReview bool       `gorm:"not null;default:false" json:"requires_admin_review"`
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
