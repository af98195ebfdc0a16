package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/membercard/pkg/types"
)

// MemberCard is a user's prepaid balance account (1:1 with users).
// balance is the authoritative current value; the transactions table is the
// audit trail. Mutated only through the ledger service, always under an
// exclusive row lock inside a transaction.
type MemberCard struct {
	ID      int64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID  int64            `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	Balance decimal.Decimal  `gorm:"column:balance;type:numeric(18,2);not null;default:0" json:"balance"`
	Status  types.CardStatus `gorm:"column:status;type:varchar(16);not null;default:active" json:"status"`
	// ExpiredAt is the card validity end; an expired card rejects all
	// deductions and top-ups until an admin extends it.
	ExpiredAt      time.Time       `gorm:"column:expired_at;not null" json:"expired_at"`
	DailyFreeLimit decimal.Decimal `gorm:"column:daily_free_limit;type:numeric(18,2);not null;default:0" json:"daily_free_limit"`
	// LastFreeQuotaUpdate is stamped by the daily quota reset.
	LastFreeQuotaUpdate *time.Time `gorm:"column:last_free_quota_update;type:date" json:"last_free_quota_update"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (MemberCard) TableName() string {
	return "member_cards"
}

// Expired reports whether the card validity has lapsed at the given instant.
func (c *MemberCard) Expired(now time.Time) bool {
	return c != nil && !c.ExpiredAt.IsZero() && c.ExpiredAt.Before(now)
}

// Usable reports whether the card accepts balance mutations at the given
// instant. Use the ledger service sentinels for the reason.
func (c *MemberCard) Usable(now time.Time) bool {
	return c != nil && c.Status == types.CardStatusActive && !c.Expired(now)
}
