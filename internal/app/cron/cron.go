package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/membercard/internal/app/service/payment"
	"github.com/fatflowers/membercard/internal/app/service/quota"
	"github.com/fatflowers/membercard/pkg/config"
	"github.com/fatflowers/membercard/pkg/metrics"
)

// jobTimeout caps a single scheduled run so a wedged job cannot hold the
// scheduler slot forever.
const jobTimeout = 5 * time.Minute

// Scheduler wires the periodic maintenance jobs: failing stale payment
// orders and resetting the daily free quota. Both jobs are idempotent, so
// overlapping with the admin endpoints that trigger the same work is safe.
type Scheduler struct {
	c   *cron.Cron
	log *zap.SugaredLogger
}

func NewScheduler(cfg *config.Config, log *zap.SugaredLogger, paymentSvc *payment.Service, quotaSvc *quota.Service, biz *metrics.Business) (*Scheduler, error) {
	if !cfg.Jobs.Enabled {
		log.Infow("scheduled jobs disabled")
		return &Scheduler{log: log}, nil
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	maxAge := time.Duration(cfg.Payment.OrderMaxAgeMinutes) * time.Minute
	_, err := c.AddFunc(cfg.Jobs.SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if _, err := paymentSvc.SweepExpired(ctx, maxAge); err != nil {
			log.Errorw("order sweep failed", "err", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule order sweep: %w", err)
	}

	_, err = c.AddFunc(cfg.Jobs.QuotaResetSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		reset, err := quotaSvc.ResetAll(ctx, time.Now())
		if err != nil {
			log.Errorw("quota reset failed", "err", err)
			return
		}
		biz.QuotaResets.Add(float64(reset))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule quota reset: %w", err)
	}

	return &Scheduler{c: c, log: log}, nil
}

func runScheduler(lc fx.Lifecycle, s *Scheduler, cfg *config.Config) {
	if s.c == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Infow("starting scheduler",
				"sweep_spec", cfg.Jobs.SweepSpec, "quota_reset_spec", cfg.Jobs.QuotaResetSpec)
			s.c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := s.c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewScheduler),
	fx.Invoke(runScheduler),
)
