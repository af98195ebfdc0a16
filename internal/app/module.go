package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/membercard/internal/app/api/server"
	"github.com/fatflowers/membercard/internal/app/cron"
	"github.com/fatflowers/membercard/internal/app/service/ledger"
	"github.com/fatflowers/membercard/internal/app/service/payment"
	"github.com/fatflowers/membercard/internal/app/service/pricing"
	"github.com/fatflowers/membercard/internal/app/service/quota"
	"github.com/fatflowers/membercard/internal/platform/cache"
	"github.com/fatflowers/membercard/internal/platform/db"
	"github.com/fatflowers/membercard/pkg/config"
	"github.com/fatflowers/membercard/pkg/logger"
	"github.com/fatflowers/membercard/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	cache.Module,
	metrics.Module,
	server.Module,
	quota.Module,
	pricing.Module,
	ledger.Module,
	payment.Module,
	cron.Module,
)
