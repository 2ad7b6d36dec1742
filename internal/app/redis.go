package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taptapgo/internal/config"
	"taptapgo/internal/logger"
)

// NewRedisClient connects to the Redis instance backing the wallet locks,
// the tariff cache and idempotent replays.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	client.AddHook(&commandHook{app: nrApp})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// keyspace maps a key to the store that owns it, e.g. "lock:wallet:d1" to
// "lock". Keys without a prefix fall into "redis".
func keyspace(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return "redis"
	}
	key, ok := args[1].(string)
	if !ok {
		return "redis"
	}
	prefix, _, found := strings.Cut(key, ":")
	if !found || prefix == "" {
		return "redis"
	}
	return prefix
}

// commandHook records a New Relic datastore segment per command, named after
// the keyspace, and logs failures other than a cache miss.
type commandHook struct {
	app *newrelic.Application
}

func (h *commandHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *commandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		collection := keyspace(cmd)
		if txn := newrelic.FromContext(ctx); h.app != nil && txn != nil {
			segment := newrelic.DatastoreSegment{
				StartTime:  txn.StartSegmentNow(),
				Product:    newrelic.DatastoreRedis,
				Operation:  cmd.Name(),
				Collection: collection,
			}
			defer segment.End()
		}

		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			logger.WithContext(ctx).Warn("redis command failed",
				zap.String("command", cmd.Name()),
				zap.String("keyspace", collection),
				zap.Error(err),
			)
		}
		return err
	}
}

func (h *commandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); h.app != nil && txn != nil {
			segment := newrelic.DatastoreSegment{
				StartTime:  txn.StartSegmentNow(),
				Product:    newrelic.DatastoreRedis,
				Operation:  "pipeline",
				Collection: "redis",
			}
			defer segment.End()
		}
		return next(ctx, cmds)
	}
}
