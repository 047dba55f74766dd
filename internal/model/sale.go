package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus constants
const (
	SaleCompleted = "completed"
	SaleVoided    = "voided"
)

// Sale is a completed checkout at one branch
type Sale struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	BranchName  string          `gorm:"type:varchar(100);not null;index" json:"branch_name"`
	CashierName string          `gorm:"type:varchar(255)" json:"cashier_name"`
	Total       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total"`
	Status      string          `gorm:"type:varchar(20);not null;default:'completed';index" json:"status"`
	Items       []SaleItem      `gorm:"foreignKey:SaleID" json:"items,omitempty"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SaleItem represents a line item within a Sale
type SaleItem struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleID    uint            `gorm:"not null;index" json:"sale_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Product   Product         `gorm:"foreignKey:ProductID" json:"-"`
	Quantity  int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
}
