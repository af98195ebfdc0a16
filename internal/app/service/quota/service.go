package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/membercard/internal/models"
	"github.com/fatflowers/membercard/internal/platform/cache"
	"github.com/fatflowers/membercard/pkg/logctx"
	"github.com/fatflowers/membercard/pkg/money"
)

// ErrCardNotFound is returned when a quota operation targets a user without
// a member card.
var ErrCardNotFound = errors.New("member card not found")

// ErrTxRequired is returned when Consume is called outside a transaction.
var ErrTxRequired = errors.New("quota consume requires a caller-supplied transaction")

// Service owns the per-user, per-day free-usage allowance. It never touches
// the card balance; splitting a price into free and paid portions is its
// whole job, applying the paid portion is the ledger's.
type Service struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	cache cache.Store
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, store cache.Store) *Service {
	return &Service{db: db, log: log, cache: store}
}

// Split is the free/paid breakdown of a single consumption.
// FreeUsed + BalanceUsed always equals the requested amount.
type Split struct {
	FreeUsed    decimal.Decimal `json:"free_used"`
	BalanceUsed decimal.Decimal `json:"balance_used"`
}

// splitAmount decides how much of amount the remaining free balance covers.
func splitAmount(freeBalance, amount decimal.Decimal) Split {
	freeUsed := money.Min(freeBalance, amount)
	if freeUsed.IsNegative() {
		freeUsed = decimal.Zero
	}
	return Split{FreeUsed: freeUsed, BalanceUsed: amount.Sub(freeUsed)}
}

// GetTodayQuota returns today's quota row for the user, cache-first,
// initializing it if the user has not touched quota today.
func (s *Service) GetTodayQuota(ctx context.Context, userID int64) (*models.DailyFreeQuota, error) {
	today := models.QuotaDateOf(time.Now())
	key := cache.DailyQuotaKey(userID, today)

	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var q models.DailyFreeQuota
		if jsonErr := json.Unmarshal([]byte(raw), &q); jsonErr == nil {
			return &q, nil
		}
	} else if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("quota cache read failed", "err", err)
	}

	var q models.DailyFreeQuota
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND quota_date = ?", userID, today).
		First(&q).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to read daily quota: %w", err)
		}
		return s.InitTodayQuota(ctx, nil, userID)
	}

	s.cacheQuota(ctx, key, &q)
	return &q, nil
}

// InitTodayQuota upserts today's row from the card's standing daily limit:
// free_balance is set to the limit and used is reset to zero. The ON
// CONFLICT upsert makes concurrent initializers converge; the last writer's
// snapshot of daily_free_limit wins.
func (s *Service) InitTodayQuota(ctx context.Context, tx *gorm.DB, userID int64) (*models.DailyFreeQuota, error) {
	if tx == nil {
		tx = s.db
	}

	var card models.MemberCard
	err := tx.WithContext(ctx).
		Select("daily_free_limit").
		Where("user_id = ?", userID).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to read card for quota init: %w", err)
	}

	today := models.QuotaDateOf(time.Now())
	limit := money.Normalize(card.DailyFreeLimit)
	row := &models.DailyFreeQuota{
		UserID:      userID,
		QuotaDate:   today,
		FreeBalance: limit,
		Used:        decimal.Zero,
	}
	err = tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "quota_date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"free_balance": limit,
				"used":         decimal.Zero,
			}),
		}).
		Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert daily quota: %w", err)
	}

	if err := s.cache.Invalidate(ctx, cache.DailyQuotaKey(userID, today)); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("quota cache invalidate failed", "err", err)
	}

	var q models.DailyFreeQuota
	if err := tx.WithContext(ctx).Where("user_id = ? AND quota_date = ?", userID, today).First(&q).Error; err != nil {
		return nil, fmt.Errorf("failed to re-read daily quota: %w", err)
	}
	return &q, nil
}

// Consume takes up to amount from today's free balance under an exclusive
// row lock and reports the split. It must run inside the caller's
// transaction so the quota decrement and the balance deduction commit or
// roll back together.
func (s *Service) Consume(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal) (Split, error) {
	if tx == nil {
		return Split{}, ErrTxRequired
	}
	amount = money.Normalize(amount)

	today := models.QuotaDateOf(time.Now())
	var q models.DailyFreeQuota
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND quota_date = ?", userID, today).
		First(&q).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Split{}, fmt.Errorf("failed to lock daily quota: %w", err)
		}
		if _, err := s.InitTodayQuota(ctx, tx, userID); err != nil {
			return Split{}, err
		}
		err = tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND quota_date = ?", userID, today).
			First(&q).Error
		if err != nil {
			return Split{}, fmt.Errorf("failed to lock daily quota after init: %w", err)
		}
	}

	split := splitAmount(q.FreeBalance, amount)
	if split.FreeUsed.IsPositive() {
		err = tx.WithContext(ctx).
			Model(&models.DailyFreeQuota{}).
			Where("id = ?", q.ID).
			Updates(map[string]interface{}{
				"free_balance": gorm.Expr("free_balance - ?", split.FreeUsed),
				"used":         gorm.Expr("used + ?", split.FreeUsed),
			}).Error
		if err != nil {
			return Split{}, fmt.Errorf("failed to consume daily quota: %w", err)
		}
		if err := s.cache.Invalidate(ctx, cache.DailyQuotaKey(userID, today)); err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("quota cache invalidate failed", "err", err)
		}
	}
	return split, nil
}

// SetTodayLimit upserts today's free balance to a new standing limit. Used
// by the ledger when an admin changes daily_free_limit: the change applies
// to the current day immediately, and the used counter is deliberately kept.
func (s *Service) SetTodayLimit(ctx context.Context, tx *gorm.DB, userID int64, limit decimal.Decimal) error {
	if tx == nil {
		tx = s.db
	}
	today := models.QuotaDateOf(time.Now())
	limit = money.Normalize(limit)
	row := &models.DailyFreeQuota{
		UserID:      userID,
		QuotaDate:   today,
		FreeBalance: limit,
		Used:        decimal.Zero,
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "quota_date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"free_balance": limit}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to set today quota limit: %w", err)
	}
	if err := s.cache.Invalidate(ctx, cache.DailyQuotaKey(userID, today)); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("quota cache invalidate failed", "err", err)
	}
	return nil
}

// ResetAll re-initializes today's quota for every active card and stamps
// last_free_quota_update. Invoked daily by the scheduler; re-running it for
// the same day converges to the same rows.
func (s *Service) ResetAll(ctx context.Context, now time.Time) (int, error) {
	var cards []models.MemberCard
	err := s.db.WithContext(ctx).
		Select("user_id", "daily_free_limit").
		Where("status = ?", "active").
		Find(&cards).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list active cards: %w", err)
	}
	if len(cards) == 0 {
		return 0, nil
	}

	today := models.QuotaDateOf(now)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, card := range cards {
			limit := money.Normalize(card.DailyFreeLimit)
			row := &models.DailyFreeQuota{
				UserID:      card.UserID,
				QuotaDate:   today,
				FreeBalance: limit,
				Used:        decimal.Zero,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "quota_date"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"free_balance": limit,
					"used":         decimal.Zero,
				}),
			}).Create(row).Error
			if err != nil {
				return fmt.Errorf("failed to reset quota for user %d: %w", card.UserID, err)
			}
			err = tx.Model(&models.MemberCard{}).
				Where("user_id = ?", card.UserID).
				Update("last_free_quota_update", now).Error
			if err != nil {
				return fmt.Errorf("failed to stamp quota update for user %d: %w", card.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(cards)*2)
	for _, card := range cards {
		keys = append(keys, cache.DailyQuotaKey(card.UserID, today), cache.MemberCardKey(card.UserID))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("quota cache invalidate failed", "err", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("daily quota reset", "cards", len(cards), "date", today)
	return len(cards), nil
}

func (s *Service) cacheQuota(ctx context.Context, key string, q *models.DailyFreeQuota) {
	raw, err := json.Marshal(q)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), cache.DailyQuotaTTL); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("quota cache write failed", "err", err)
	}
}
