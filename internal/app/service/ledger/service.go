package ledger

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

	"github.com/fatflowers/membercard/internal/app/service/pricing"
	"github.com/fatflowers/membercard/internal/app/service/quota"
	"github.com/fatflowers/membercard/internal/models"
	"github.com/fatflowers/membercard/internal/platform/cache"
	"github.com/fatflowers/membercard/pkg/config"
	"github.com/fatflowers/membercard/pkg/logctx"
	"github.com/fatflowers/membercard/pkg/metrics"
	"github.com/fatflowers/membercard/pkg/money"
	"github.com/fatflowers/membercard/pkg/tool"
	"github.com/fatflowers/membercard/pkg/types"
)

// Service is the balance ledger: it owns member cards, every balance
// mutation, and the audit trail of transactions.
type Service struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	cache cache.Store
	cfg     *config.Config
	quota   *quota.Service
	pricing *pricing.Service
	biz     *metrics.Business
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, store cache.Store, cfg *config.Config, quotaSvc *quota.Service, pricingSvc *pricing.Service, biz *metrics.Business) *Service {
	return &Service{db: db, log: log, cache: store, cfg: cfg, quota: quotaSvc, pricing: pricingSvc, biz: biz}
}

// GetOrCreateCard returns the user's card, creating a zero-balance card
// with a one-year validity on first access. The user must already exist.
func (s *Service) GetOrCreateCard(ctx context.Context, userID int64) (*models.MemberCard, error) {
	key := cache.MemberCardKey(userID)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var card models.MemberCard
		if jsonErr := json.Unmarshal([]byte(raw), &card); jsonErr == nil {
			return &card, nil
		}
	} else if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("card cache read failed", "err", err)
	}

	var card models.MemberCard
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&card).Error
	if err == nil {
		s.cacheCard(ctx, key, &card)
		return &card, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to read member card: %w", err)
	}

	var user models.User
	err = s.db.WithContext(ctx).Select("id").First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to read user: %w", err)
	}

	now := time.Now()
	fresh := models.MemberCard{
		UserID:         userID,
		Balance:        decimal.Zero,
		Status:         types.CardStatusActive,
		ExpiredAt:      now.AddDate(1, 0, 0),
		DailyFreeLimit: s.cfg.DefaultDailyFreeLimit(),
	}
	// Concurrent first accesses race to insert; DoNothing lets the loser
	// fall through to the winner's row.
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&fresh).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create member card: %w", err)
	}

	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&card).Error; err != nil {
		return nil, fmt.Errorf("failed to re-read member card: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("member card created", "user_id", userID, "expired_at", card.ExpiredAt)
	s.cacheCard(ctx, key, &card)
	return &card, nil
}

// validateCard rejects frozen and expired cards.
func validateCard(card *models.MemberCard, now time.Time) error {
	if card.Status != types.CardStatusActive {
		return ErrCardFrozen
	}
	if card.Expired(now) {
		return ErrCardExpired
	}
	return nil
}

// lockCard reads the user's card under FOR UPDATE inside tx.
func lockCard(ctx context.Context, tx *gorm.DB, userID int64) (*models.MemberCard, error) {
	var card models.MemberCard
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to lock member card: %w", err)
	}
	return &card, nil
}

// Credit adds amount to the card balance under lock inside the caller's
// transaction and returns the new balance. The caller owns the ledger row
// for the credit and the cache invalidation after commit; the payment
// state machine uses this so the order row itself stays the audit record.
func (s *Service) Credit(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	amount = money.Normalize(amount)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidArgument
	}
	card, err := lockCard(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	// No status or expiry check: the provider has already captured the
	// funds, so the credit must land even on a frozen or lapsed card.
	newBalance := card.Balance.Add(amount)
	err = tx.WithContext(ctx).
		Model(&models.MemberCard{}).
		Where("id = ?", card.ID).
		Update("balance", newBalance).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit balance: %w", err)
	}
	return newBalance, nil
}

// MutateBalance applies a standalone balance change and writes its settled
// ledger row in one transaction. kind must be topup or deduction; deduction
// can never take the balance negative. Returns the new balance.
func (s *Service) MutateBalance(ctx context.Context, userID int64, amount decimal.Decimal, kind types.TransactionType) (decimal.Decimal, error) {
	amount = money.Normalize(amount)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidArgument
	}
	if kind != types.TransactionTypeTopup && kind != types.TransactionTypeDeduction {
		return decimal.Zero, ErrInvalidArgument
	}

	var newBalance decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := lockCard(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := time.Now()
		if err := validateCard(card, now); err != nil {
			return err
		}

		switch kind {
		case types.TransactionTypeTopup:
			newBalance = card.Balance.Add(amount)
		case types.TransactionTypeDeduction:
			newBalance = card.Balance.Sub(amount)
			if newBalance.IsNegative() {
				return ErrInsufficientBalance
			}
		}

		err = tx.Model(&models.MemberCard{}).
			Where("id = ?", card.ID).
			Update("balance", newBalance).Error
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		row := models.Transaction{
			TransactionNo: tool.GenerateTransactionNo(),
			UserID:        userID,
			Type:          kind,
			Amount:        amount,
			Status:        types.TransactionStatusCompleted,
			SettledAt:     &now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.invalidateCard(ctx, userID)
	logctx.FromCtx(ctx, s.log).Infow("balance mutated",
		"user_id", userID, "kind", kind, "amount", amount, "balance", newBalance)
	return newBalance, nil
}

// ExtendExpiry pushes the card's expiry out by days. An already expired
// card restarts from now rather than stacking onto the past date.
func (s *Service) ExtendExpiry(ctx context.Context, userID int64, days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, ErrInvalidArgument
	}
	var newExpiry time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := lockCard(ctx, tx, userID)
		if err != nil {
			return err
		}
		newExpiry = nextExpiry(card.ExpiredAt, time.Now(), days)
		return tx.Model(&models.MemberCard{}).
			Where("id = ?", card.ID).
			Update("expired_at", newExpiry).Error
	})
	if err != nil {
		return time.Time{}, err
	}
	s.invalidateCard(ctx, userID)
	logctx.FromCtx(ctx, s.log).Infow("card expiry extended", "user_id", userID, "days", days, "expired_at", newExpiry)
	return newExpiry, nil
}

// nextExpiry picks the extension base: the current expiry when still in
// the future, otherwise now.
func nextExpiry(current, now time.Time, days int) time.Time {
	base := current
	if base.Before(now) {
		base = now
	}
	return base.AddDate(0, 0, days)
}

// UpdateDailyFreeLimit changes the card's standing daily free limit and
// applies it to today's quota in the same transaction.
func (s *Service) UpdateDailyFreeLimit(ctx context.Context, userID int64, limit decimal.Decimal) error {
	limit = money.Normalize(limit)
	if limit.IsNegative() {
		return ErrInvalidArgument
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := lockCard(ctx, tx, userID)
		if err != nil {
			return err
		}
		err = tx.Model(&models.MemberCard{}).
			Where("id = ?", card.ID).
			Update("daily_free_limit", limit).Error
		if err != nil {
			return fmt.Errorf("failed to update daily free limit: %w", err)
		}
		return s.quota.SetTodayLimit(ctx, tx, userID, limit)
	})
	if err != nil {
		return err
	}
	s.invalidateCard(ctx, userID)
	logctx.FromCtx(ctx, s.log).Infow("daily free limit updated", "user_id", userID, "limit", limit)
	return nil
}

// FreezeCard flips the card status. Frozen cards reject every mutation
// until unfrozen.
func (s *Service) FreezeCard(ctx context.Context, userID int64, frozen bool) error {
	status := types.CardStatusActive
	if frozen {
		status = types.CardStatusFrozen
	}
	res := s.db.WithContext(ctx).
		Model(&models.MemberCard{}).
		Where("user_id = ?", userID).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update card status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCardNotFound
	}
	s.invalidateCard(ctx, userID)
	return nil
}

// QuotaInfo is the combined card-limit and today-quota view.
type QuotaInfo struct {
	DailyFreeLimit decimal.Decimal `json:"daily_free_limit"`
	FreeBalance    decimal.Decimal `json:"free_balance"`
	Used           decimal.Decimal `json:"used"`
	QuotaDate      string          `json:"quota_date"`
}

// GetQuotaInfo returns today's free-quota state alongside the standing limit.
func (s *Service) GetQuotaInfo(ctx context.Context, userID int64) (*QuotaInfo, error) {
	card, err := s.GetOrCreateCard(ctx, userID)
	if err != nil {
		return nil, err
	}
	q, err := s.quota.GetTodayQuota(ctx, userID)
	if err != nil {
		if errors.Is(err, quota.ErrCardNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &QuotaInfo{
		DailyFreeLimit: card.DailyFreeLimit,
		FreeBalance:    q.FreeBalance,
		Used:           q.Used,
		QuotaDate:      q.QuotaDate,
	}, nil
}

// ListTransactions pages the user's ledger history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]models.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	var total int64
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	var rows []models.Transaction
	err := q.Order("id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return rows, total, nil
}

func (s *Service) cacheCard(ctx context.Context, key string, card *models.MemberCard) {
	raw, err := json.Marshal(card)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), cache.MemberCardTTL); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("card cache write failed", "err", err)
	}
}

func (s *Service) invalidateCard(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, cache.MemberCardKey(userID)); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("card cache invalidate failed", "err", err)
	}
}
