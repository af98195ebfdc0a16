package cache

import (
	"context"
	"fmt"
	"time"
)

// Store is the read-through cache in front of member cards, daily quotas and
// app pricing. Write paths invalidate (never update) their keys as part of a
// committing transaction, so the next read re-fetches the authoritative row.
type Store interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Cache key builders. Kept together so read and invalidate paths cannot
// drift apart.

func MemberCardKey(userID int64) string {
	return fmt.Sprintf("member_card:%d", userID)
}

func DailyQuotaKey(userID int64, quotaDate string) string {
	return fmt.Sprintf("daily_free_quota:%d:%s", userID, quotaDate)
}

func AppPricingKey(appID string) string {
	return fmt.Sprintf("app_pricing:%s", appID)
}

const (
	MemberCardTTL = 5 * time.Minute
	DailyQuotaTTL = time.Hour
	AppPricingTTL = 10 * time.Minute
)
