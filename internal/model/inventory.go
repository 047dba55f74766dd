package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents an item stocked by a branch
type Product struct {
	ID         uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	SKU        string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name"`
	BranchName string          `gorm:"type:varchar(100);index" json:"branch_name"`
	Quantity   int             `gorm:"type:int;default:0;not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	ExpiryDate *time.Time      `gorm:"index" json:"expiry_date,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TransactionType Enum Simulation
const (
	TxTypeIn  = "IN"
	TxTypeOut = "OUT"
)

// InventoryTransaction records every stock movement: approved inventory requests move stock IN,
// sales move it OUT.
type InventoryTransaction struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID       uint      `gorm:"not null;index" json:"product_id"`
	SaleID          *uint     `gorm:"index" json:"sale_id,omitempty"`
	RequestID       *uint     `gorm:"index" json:"request_id,omitempty"`
	TransactionType string    `gorm:"type:varchar(10);not null" json:"transaction_type"` // IN, OUT
	QuantityChanged int       `gorm:"type:int;not null" json:"quantity_changed"`
	StockAfter      int       `gorm:"type:int;not null" json:"stock_after"`
	CreatedAt       time.Time `json:"created_at"`
}
