package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/oshokin/alarm-engine/internal/analytics"
	"github.com/oshokin/alarm-engine/internal/battle"
	"github.com/oshokin/alarm-engine/internal/clock"
	"github.com/oshokin/alarm-engine/internal/config"
	"github.com/oshokin/alarm-engine/internal/logger"
	"github.com/oshokin/alarm-engine/internal/notification"
	"github.com/oshokin/alarm-engine/internal/ratelimit"
	"github.com/oshokin/alarm-engine/internal/repository/storage"
	"github.com/oshokin/alarm-engine/internal/service/engine"
)

// Backend names accepted by the configuration.
const (
	backendFile     = "file"
	backendPostgres = "postgres"
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendMQTT     = "mqtt"
)

var errUnknownBackend = errors.New("unknown backend")

// resources holds the collaborators built from configuration and their cleanup.
type resources struct {
	deps    engine.Dependencies
	metrics *analytics.PrometheusEmitter
	closers []func()
}

// close releases resources in reverse order of creation.
func (r *resources) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}

	r.closers = nil
}

// buildResources creates every engine collaborator from cfg.
// On error the already created resources are released.
func buildResources(ctx context.Context, cfg *config.Config) (*resources, error) {
	res := &resources{metrics: analytics.NewPrometheusEmitter()}

	if err := res.build(ctx, cfg); err != nil {
		res.close()

		return nil, err
	}

	return res, nil
}

func (r *resources) build(ctx context.Context, cfg *config.Config) error {
	var err error

	r.deps.Analytics = r.metrics

	if r.deps.Clock, err = clock.NewReal(cfg.Engine.Timezone); err != nil {
		return err
	}

	if r.deps.Repository, err = r.repository(ctx, &cfg.Storage); err != nil {
		return err
	}

	if r.deps.Limiter, err = r.limiter(ctx, &cfg.RateLimiter); err != nil {
		return err
	}

	if r.deps.Notifier, err = r.notifier(&cfg.Notifications, cfg.Timeout); err != nil {
		return err
	}

	r.deps.Battle = battleAdapter(&cfg.Battle)

	return nil
}

func (r *resources) repository(ctx context.Context, cfg *config.Storage) (storage.Repository, error) {
	switch cfg.Backend {
	case backendFile:
		return storage.NewFileRepository(cfg.Dir), nil
	case backendMemory:
		return storage.NewMemoryRepository(), nil
	case backendPostgres:
		db, err := storage.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}

		r.closers = append(r.closers, func() { _ = db.Close() })

		repo := storage.NewPostgresRepository(db)
		if err = repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}

		return repo, nil
	default:
		return nil, fmt.Errorf("%w: storage %q", errUnknownBackend, cfg.Backend)
	}
}

func (r *resources) limiter(ctx context.Context, cfg *config.RateLimiter) (ratelimit.Limiter, error) {
	switch cfg.Backend {
	case backendMemory:
		return ratelimit.NewMemoryLimiter(), nil
	case backendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		r.closers = append(r.closers, func() { _ = client.Close() })

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}

		return ratelimit.NewRedisLimiter(client, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("%w: rate limiter %q", errUnknownBackend, cfg.Backend)
	}
}

func (r *resources) notifier(cfg *config.Notifications, timeout time.Duration) (notification.Scheduler, error) {
	switch cfg.Backend {
	case backendMemory:
		return notification.NewMemoryScheduler(), nil
	case backendMQTT:
		client, err := notification.DialMQTT(notification.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, err
		}

		r.closers = append(r.closers, func() { client.Disconnect(disconnectQuiesceMillis) })

		return notification.NewMQTTScheduler(client, cfg.MQTTTopic, timeout), nil
	default:
		return nil, fmt.Errorf("%w: notifications %q", errUnknownBackend, cfg.Backend)
	}
}

// battleAdapter returns the HTTP battle client, or Disabled without a base URL.
func battleAdapter(cfg *config.Battle) battle.Adapter {
	if cfg.BaseURL == "" {
		return battle.Disabled{}
	}

	return battle.NewHTTPAdapter(cfg.BaseURL, cfg.Timeout)
}

// preload loads the configured partitions, logging failures.
func preload(ctx context.Context, e *engine.Engine, owners []string) {
	for _, owner := range owners {
		alarms, err := e.Load(ctx, owner)
		if err != nil {
			logger.WarnKV(ctx, "Failed to preload alarms", "owner", owner, "error", err)

			continue
		}

		logger.InfoKV(ctx, "Preloaded alarms", "owner", owner, "count", len(alarms))
	}
}
