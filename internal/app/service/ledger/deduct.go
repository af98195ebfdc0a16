package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatflowers/membercard/internal/app/service/quota"
	"github.com/fatflowers/membercard/internal/models"
	"github.com/fatflowers/membercard/pkg/logctx"
	"github.com/fatflowers/membercard/pkg/metrics"
	"github.com/fatflowers/membercard/pkg/money"
	"github.com/fatflowers/membercard/pkg/tool"
	"github.com/fatflowers/membercard/pkg/types"
)

// DeductResult reports how a single app use was paid for.
type DeductResult struct {
	AppID       string          `json:"app_id"`
	AppName     string          `json:"app_name"`
	Total       decimal.Decimal `json:"total"`
	FreeUsed    decimal.Decimal `json:"free_used"`
	BalanceUsed decimal.Decimal `json:"balance_used"`
	Balance     decimal.Decimal `json:"balance"`
}

// DeductForAppUse charges one use of an app: today's free quota is drained
// first and only the remainder comes off the card balance. The quota
// decrement, the balance update and the ledger rows commit atomically, and
// the balance check applies to the remainder alone. Lock order is quota
// row first, then card row.
func (s *Service) DeductForAppUse(ctx context.Context, userID int64, appID string) (*DeductResult, error) {
	app, err := s.pricing.GetApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	price := money.Normalize(app.Price)
	if !price.IsPositive() {
		return nil, ErrInvalidArgument
	}

	var result DeductResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		split, err := s.quota.Consume(ctx, tx, userID, price)
		if err != nil {
			if errors.Is(err, quota.ErrCardNotFound) {
				return ErrCardNotFound
			}
			return err
		}

		card, err := lockCard(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := time.Now()
		if err := validateCard(card, now); err != nil {
			return err
		}

		newBalance := card.Balance
		if split.BalanceUsed.IsPositive() {
			newBalance = card.Balance.Sub(split.BalanceUsed)
			if newBalance.IsNegative() {
				return ErrInsufficientBalance
			}
			err = tx.Model(&models.MemberCard{}).
				Where("id = ?", card.ID).
				Update("balance", newBalance).Error
			if err != nil {
				return fmt.Errorf("failed to update balance: %w", err)
			}
		}

		appRef := app.AppID
		if split.FreeUsed.IsPositive() {
			row := models.Transaction{
				TransactionNo: tool.GenerateTransactionNo(),
				UserID:        userID,
				Type:          types.TransactionTypeFreeDeduction,
				Amount:        split.FreeUsed,
				Status:        types.TransactionStatusCompleted,
				RelatedAppID:  &appRef,
				SettledAt:     &now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to write free deduction row: %w", err)
			}
		}
		if split.BalanceUsed.IsPositive() {
			row := models.Transaction{
				TransactionNo: tool.GenerateTransactionNo(),
				UserID:        userID,
				Type:          types.TransactionTypeDeduction,
				Amount:        split.BalanceUsed,
				Status:        types.TransactionStatusCompleted,
				RelatedAppID:  &appRef,
				SettledAt:     &now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to write deduction row: %w", err)
			}
		}

		result = DeductResult{
			AppID:       app.AppID,
			AppName:     app.Name,
			Total:       price,
			FreeUsed:    split.FreeUsed,
			BalanceUsed: split.BalanceUsed,
			Balance:     newBalance,
		}
		return nil
	})
	if err != nil {
		s.biz.Deductions.WithLabelValues(deductionResult(err)).Inc()
		return nil, err
	}

	s.invalidateCard(ctx, userID)
	s.biz.Deductions.WithLabelValues(metrics.ResultOK).Inc()
	logctx.FromCtx(ctx, s.log).Infow("app use deducted",
		"user_id", userID, "app_id", appID,
		"free_used", result.FreeUsed, "balance_used", result.BalanceUsed)
	return &result, nil
}

func deductionResult(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrCardFrozen),
		errors.Is(err, ErrCardExpired),
		errors.Is(err, ErrCardNotFound):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
