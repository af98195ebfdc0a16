package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/membercard/pkg/types"
)

// Transaction is an append-only ledger entry. Rows of type topup start
// pending and are settled exactly once by a provider callback or the expiry
// sweeper; deduction rows are written directly as completed. A terminal row
// is never mutated again.
type Transaction struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	// TransactionNo is the globally unique audit number (uuid v7).
	TransactionNo string                `gorm:"column:transaction_no;type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        int64                 `gorm:"column:user_id;index;not null" json:"user_id"`
	Type          types.TransactionType `gorm:"column:type;type:varchar(20);not null" json:"type"`
	// Amount is always positive; Type carries the direction.
	Amount decimal.Decimal         `gorm:"column:amount;type:numeric(18,2);not null" json:"amount"`
	Status types.TransactionStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	// RelatedAppID links deduction rows to the app that was used.
	RelatedAppID *string `gorm:"column:related_app_id;type:varchar(64)" json:"related_app_id"`
	// ThirdPartyTxID is set only on topup orders; unique where non-null so a
	// provider callback resolves to exactly one order.
	ThirdPartyTxID *string    `gorm:"column:third_party_txid;type:varchar(64);uniqueIndex" json:"third_party_txid"`
	SettledAt      *time.Time `gorm:"column:settled_at" json:"settled_at"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Pending reports whether the row is still awaiting settlement.
func (t *Transaction) Pending() bool {
	return t != nil && t.Status == types.TransactionStatusPending
}
