package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyFreeQuota is one row per (user_id, quota_date): the remaining free
// allowance for that calendar day. Rows are created lazily on first touch or
// eagerly by the daily reset; both paths share the same ON CONFLICT upsert
// so concurrent initializers converge to one row.
//
// Invariant: free_balance + used == the card's daily_free_limit as of the
// last (re)initialization of the row.
type DailyFreeQuota struct {
	ID     int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"column:user_id;not null;uniqueIndex:uniq_user_quota_date,priority:1" json:"user_id"`
	// QuotaDate is the calendar day (YYYY-MM-DD) the row covers.
	QuotaDate   string          `gorm:"column:quota_date;type:varchar(10);not null;uniqueIndex:uniq_user_quota_date,priority:2" json:"quota_date"`
	FreeBalance decimal.Decimal `gorm:"column:free_balance;type:numeric(18,2);not null;default:0" json:"free_balance"`
	Used        decimal.Decimal `gorm:"column:used;type:numeric(18,2);not null;default:0" json:"used"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (DailyFreeQuota) TableName() string {
	return "daily_free_quota"
}

// QuotaDateOf formats an instant as the quota row key for its UTC day.
func QuotaDateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
