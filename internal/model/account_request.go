package model

import (
	"strings"
	"time"
)

// AccountRequest status constants
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// Staff roles
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// AccountRequest is a staff registration awaiting an owner decision.
type AccountRequest struct {
	UserID          uint       `gorm:"primaryKey;autoIncrement" json:"user_id"`
	FullName        string     `gorm:"type:varchar(255);not null" json:"full_name"`
	Username        string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email           string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash    string     `gorm:"type:varchar(255);not null" json:"-"`
	Branch          string     `gorm:"type:varchar(100);index" json:"branch"`
	Roles           string     `gorm:"type:varchar(255)" json:"-"` // comma separated
	RequestStatus   string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"request_status"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedByName   string     `gorm:"type:varchar(255)" json:"created_by_name"`
	DecidedBy       string     `gorm:"type:varchar(255)" json:"decided_by,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RoleList splits the stored role column.
func (a AccountRequest) RoleList() []string {
	var roles []string
	for _, r := range strings.Split(a.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// JoinRoles normalizes roles into the stored column format.
func JoinRoles(roles []string) string {
	clean := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			clean = append(clean, r)
		}
	}
	return strings.Join(clean, ",")
}
