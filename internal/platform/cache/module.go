package cache

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/membercard/pkg/config"
)

// NewStore picks redis when an address is configured and falls back to the
// in-memory store otherwise.
func NewStore(l *zap.SugaredLogger, cfg *cfgpkg.Config) (Store, error) {
	if cfg.Redis.Addr == "" {
		l.Infow("cache: using in-memory store")
		return NewMemoryStore(), nil
	}
	s, err := NewRedisStore(cfg)
	if err != nil {
		l.Errorf("failed to connect redis: %v", err)
		return nil, err
	}
	l.Infow("cache: connected to redis", "addr", cfg.Redis.Addr)
	return s, nil
}

var Module = fx.Options(
	fx.Provide(NewStore),
)
