package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/internal/pkg/env"
	"github.com/francopicc/ameba/internal/pkg/logger"
)

// Logical Redis databases, one per concern.
const (
	DBDefault  = 0
	DBSessions = 1
	DBOAuth    = 2
	DBLimiter  = 3
)

var client *redis.Client

// SetupCache initializes the Redis connection. CACHE_HOST="" disables Redis
// and every consumer falls back to in-process storage.
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "")
	if host == "" {
		logger.L().Warn("CACHE_HOST not set, sessions and rate limits stay in process memory")
		client = nil
		return
	}
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       DBDefault,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.L().Warn("could not connect to redis", zap.String("addr", client.Options().Addr), zap.Error(err))
	} else {
		logger.L().Info("connected to redis", zap.String("addr", client.Options().Addr))
	}
}

// GetClient returns the Redis client instance, or nil when Redis is disabled.
func GetClient() *redis.Client {
	return client
}

// Enabled reports whether a Redis client is configured.
func Enabled() bool {
	return client != nil
}

// Ping checks connectivity for health endpoints.
func Ping(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("redis disabled")
	}
	return client.Ping(ctx).Err()
}

// Storage returns a fiber storage backed by Redis database db, reusing the
// connection settings of the main client. It returns nil when Redis is
// disabled so callers can pass it straight to fiber configs, which then use
// their in-memory default.
func Storage(db int) fiber.Storage {
	if client == nil {
		return nil
	}
	opts := client.Options()
	host, port := "127.0.0.1", 6379
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	} else if opts.Addr != "" {
		host = opts.Addr
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: db,
		Reset:    false,
	})
}
