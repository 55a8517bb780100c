package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
)

var (
	client    *redis.Client
	available bool
	ctx       = context.Background()
)

// SetupCache initializes the connection to the Redis server.
func SetupCache() {
	client = redis.NewClient(&redis.Options{
		Addr:     Addr(),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	pong, err := client.Ping(pingCtx).Result()
	if err != nil {
		available = false
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	} else {
		available = true
		log.Printf("Successfully connected to Redis cache: %s", pong)
	}
}

// Addr returns host:port of the configured Redis server.
func Addr() string {
	return fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
}

// Port returns CACHE_PORT as an int for clients that take it separately.
func Port() int {
	p, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		return 6379
	}
	return p
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// SetClient replaces the shared client (tests, alternative wiring).
func SetClient(c *redis.Client) {
	client = c
	available = c != nil
}

// IsAvailable reports whether the last connection attempt succeeded.
func IsAvailable() bool {
	return client != nil && available
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}
