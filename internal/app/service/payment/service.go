package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/membercard/internal/app/service/ledger"
	"github.com/fatflowers/membercard/internal/models"
	"github.com/fatflowers/membercard/internal/platform/cache"
	"github.com/fatflowers/membercard/pkg/config"
	"github.com/fatflowers/membercard/pkg/logctx"
	"github.com/fatflowers/membercard/pkg/metrics"
	"github.com/fatflowers/membercard/pkg/money"
	"github.com/fatflowers/membercard/pkg/tool"
	"github.com/fatflowers/membercard/pkg/types"
)

var (
	ErrOrderNotFound    = errors.New("payment order not found")
	ErrOrderProcessed   = errors.New("payment order already processed")
	ErrInvalidSignature = errors.New("invalid callback signature")
	ErrAmountMismatch   = errors.New("callback amount mismatch")
	ErrInvalidStatus    = errors.New("unsupported callback status")
	ErrInvalidAmount    = errors.New("top-up amount must be positive")
)

// Service drives the top-up order lifecycle: a pending order per provider
// transaction id, settled exactly once by a signed provider callback, and
// failed by the sweeper when the provider never answers.
type Service struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	cache  cache.Store
	cfg    *config.Config
	ledger *ledger.Service
	biz    *metrics.Business
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, store cache.Store, cfg *config.Config, ledgerSvc *ledger.Service, biz *metrics.Business) *Service {
	return &Service{db: db, log: log, cache: store, cfg: cfg, ledger: ledgerSvc, biz: biz}
}

// CreateOrder opens a pending top-up for the stated amount and returns the
// order row, including the provider transaction id the caller hands to the
// payment page. The member card is provisioned here if this is the user's
// first touch.
func (s *Service) CreateOrder(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Transaction, error) {
	amount = money.Normalize(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.ledger.GetOrCreateCard(ctx, userID); err != nil {
		return nil, err
	}

	txid := tool.GenerateProviderTxID(time.Now())
	order := models.Transaction{
		TransactionNo:  tool.GenerateTransactionNo(),
		UserID:         userID,
		Type:           types.TransactionTypeTopup,
		Amount:         amount,
		Status:         types.TransactionStatusPending,
		ThirdPartyTxID: &txid,
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		s.biz.Topups.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to create payment order: %w", err)
	}

	s.biz.Topups.WithLabelValues(metrics.ResultOK).Inc()
	logctx.FromCtx(ctx, s.log).Infow("payment order created",
		"user_id", userID, "amount", amount, "third_party_txid", txid)
	return &order, nil
}

// CallbackRequest is the provider notification as received. Amount stays a
// string until the signature has been checked against the raw value.
type CallbackRequest struct {
	TxID      string `json:"txid" form:"txid" binding:"required"`
	Amount    string `json:"amount" form:"amount" binding:"required"`
	Status    string `json:"status" form:"status" binding:"required"`
	Timestamp string `json:"timestamp" form:"timestamp" binding:"required"`
	Signature string `json:"signature" form:"signature" binding:"required"`
}

// validateCallback runs the pre-settlement checks in a fixed order: order
// state, then authenticity, then amount, then the reported status. It
// returns the target terminal status on success. A failed check leaves the
// order pending so the provider can retry with a corrected notification.
func validateCallback(order *models.Transaction, req *CallbackRequest, secret string) (types.TransactionStatus, error) {
	if !order.Pending() {
		return "", ErrOrderProcessed
	}
	if !VerifySignature(req.Timestamp, req.Amount, req.TxID, secret, req.Signature) {
		return "", ErrInvalidSignature
	}
	reported, err := money.ParseReported(req.Amount)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAmountMismatch, err)
	}
	if !money.WithinTolerance(order.Amount, reported) {
		return "", ErrAmountMismatch
	}
	switch types.TransactionStatus(req.Status) {
	case types.TransactionStatusCompleted:
		return types.TransactionStatusCompleted, nil
	case types.TransactionStatusFailed:
		return types.TransactionStatusFailed, nil
	default:
		return "", ErrInvalidStatus
	}
}

// ApplyCallback settles a provider notification. The stored order amount is
// what gets credited; the reported amount only has to fall inside the
// provider's rounding tolerance. Settlement and the balance credit share
// one transaction, and the status flip is guarded by a pending-only update
// so a concurrent duplicate callback loses cleanly.
func (s *Service) ApplyCallback(ctx context.Context, req *CallbackRequest) error {
	err := s.applyCallback(ctx, req)
	s.biz.Callbacks.WithLabelValues(callbackResult(err)).Inc()
	return err
}

func (s *Service) applyCallback(ctx context.Context, req *CallbackRequest) error {
	var order models.Transaction
	err := s.db.WithContext(ctx).
		Where("third_party_txid = ?", req.TxID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to read payment order: %w", err)
	}

	target, err := validateCallback(&order, req, s.cfg.Payment.Secret)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("payment callback rejected",
			"third_party_txid", req.TxID, "reason", err)
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Transaction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", order.ID).
			First(&locked).Error
		if err != nil {
			return fmt.Errorf("failed to lock payment order: %w", err)
		}
		if !locked.Pending() {
			return ErrOrderProcessed
		}
		if !types.CanTransition(locked.Status, target) {
			return ErrInvalidStatus
		}

		now := time.Now()
		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", locked.ID, types.TransactionStatusPending).
			Updates(map[string]interface{}{
				"status":     target,
				"settled_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to settle payment order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrOrderProcessed
		}

		if target == types.TransactionStatusCompleted {
			// The order row is the ledger entry; only the card moves here.
			if _, err := s.ledger.Credit(ctx, tx, locked.UserID, locked.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if target == types.TransactionStatusCompleted {
		if err := s.cache.Invalidate(ctx, cache.MemberCardKey(order.UserID)); err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("card cache invalidate failed", "err", err)
		}
	}
	logctx.FromCtx(ctx, s.log).Infow("payment callback settled",
		"third_party_txid", req.TxID, "status", target, "amount", order.Amount)
	return nil
}

// SweepExpired fails pending top-up orders older than maxAge. Each order is
// re-checked under lock in its own transaction, so a callback racing the
// sweeper settles the order at most once. Returns the number swept.
func (s *Service) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	var stale []models.Transaction
	err := s.db.WithContext(ctx).
		Select("id").
		Where("type = ? AND status = ? AND created_at < ?",
			types.TransactionTypeTopup, types.TransactionStatusPending, cutoff).
		Limit(500).
		Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list stale payment orders: %w", err)
	}

	swept := 0
	for _, order := range stale {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Transaction{}).
				Where("id = ? AND status = ?", order.ID, types.TransactionStatusPending).
				Updates(map[string]interface{}{
					"status":     types.TransactionStatusFailed,
					"settled_at": time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrOrderProcessed
			}
			return nil
		})
		if err != nil {
			if !errors.Is(err, ErrOrderProcessed) {
				logctx.FromCtx(ctx, s.log).Warnw("failed to sweep payment order",
					"order_id", order.ID, "err", err)
			}
			continue
		}
		swept++
	}

	if swept > 0 {
		s.biz.SweptOrders.Add(float64(swept))
		logctx.FromCtx(ctx, s.log).Infow("stale payment orders swept", "count", swept)
	}
	return swept, nil
}

func callbackResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrOrderProcessed),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, ErrInvalidStatus):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
