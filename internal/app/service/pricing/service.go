package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/membercard/internal/models"
	"github.com/fatflowers/membercard/internal/platform/cache"
	"github.com/fatflowers/membercard/pkg/logctx"
	"github.com/fatflowers/membercard/pkg/money"
)

// ErrAppNotFound is returned when no pricing entry exists for an app id.
var ErrAppNotFound = errors.New("app not found")

// ErrInvalidPrice is returned when an upsert carries a non-positive price.
var ErrInvalidPrice = errors.New("app price must be positive")

// Service is the read-mostly catalog of per-use app prices.
type Service struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	cache cache.Store
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, store cache.Store) *Service {
	return &Service{db: db, log: log, cache: store}
}

// GetApp returns the pricing entry for appID, cache-first.
func (s *Service) GetApp(ctx context.Context, appID string) (*models.AppPricing, error) {
	key := cache.AppPricingKey(appID)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var app models.AppPricing
		if jsonErr := json.Unmarshal([]byte(raw), &app); jsonErr == nil {
			return &app, nil
		}
	} else if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("pricing cache read failed", "err", err)
	}

	var app models.AppPricing
	err := s.db.WithContext(ctx).Where("app_id = ?", appID).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppNotFound
		}
		return nil, fmt.Errorf("failed to read app pricing: %w", err)
	}

	if raw, err := json.Marshal(&app); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), cache.AppPricingTTL); err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("pricing cache write failed", "err", err)
		}
	}
	return &app, nil
}

// ListApps returns the whole catalog ordered by price.
func (s *Service) ListApps(ctx context.Context) ([]models.AppPricing, error) {
	var apps []models.AppPricing
	err := s.db.WithContext(ctx).Order("price asc, app_id asc").Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list app pricing: %w", err)
	}
	return apps, nil
}

// UpsertApp creates or replaces the pricing entry for app.AppID.
func (s *Service) UpsertApp(ctx context.Context, app *models.AppPricing) error {
	app.Price = money.Normalize(app.Price)
	if !app.Price.IsPositive() {
		return ErrInvalidPrice
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "app_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"name":        app.Name,
				"price":       app.Price,
				"description": app.Description,
			}),
		}).
		Create(app).Error
	if err != nil {
		return fmt.Errorf("failed to upsert app pricing: %w", err)
	}
	if err := s.cache.Invalidate(ctx, cache.AppPricingKey(app.AppID)); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("pricing cache invalidate failed", "err", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("app pricing upserted", "app_id", app.AppID, "price", app.Price)
	return nil
}
