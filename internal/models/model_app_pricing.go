package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppPricing is the reference price list for pay-per-use apps. Read-only
// from the ledger's perspective; admin CRUD lives in the pricing service.
type AppPricing struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AppID       string          `gorm:"column:app_id;type:varchar(64);uniqueIndex;not null" json:"app_id"`
	Name        string          `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(18,2);not null" json:"price"`
	Description string          `gorm:"column:description;type:varchar(512)" json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (AppPricing) TableName() string {
	return "app_pricing"
}
