// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
)

// Redis databases reserved for tests, one per package so parallel package
// runs never flush each other's keys.
const (
	RedisDBJobQueue     = 14
	RedisDBSweeper      = 13
	RedisDBCapabilities = 12
)

func candidates() (hosts, ports, passwords []string) {
	hosts = unique([]string{env.GetEnv("CACHE_HOST", ""), "cache", "zintra-cache", "localhost", "127.0.0.1"}, false)
	ports = unique([]string{env.GetEnv("CACHE_PORT", "6379"), "6379"}, false)
	passwords = unique([]string{env.GetEnv("CACHE_PASSWORD", ""), ""}, true)
	return
}

func unique(in []string, keepEmpty bool) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" && !keepEmpty {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ResolveRedis returns the first reachable Redis endpoint or skips the test.
func ResolveRedis(t *testing.T) (addr, password string) {
	t.Helper()

	hosts, ports, passwords := candidates()
	var lastErr error
	for _, host := range hosts {
		for _, port := range ports {
			for _, pw := range passwords {
				a := fmt.Sprintf("%s:%s", host, port)
				client := redis.NewClient(&redis.Options{Addr: a, Password: pw})
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				err := client.Ping(ctx).Err()
				cancel()
				_ = client.Close()
				if err == nil {
					return a, pw
				}
				lastErr = err
			}
		}
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", lastErr)
	return "", ""
}

// RedisClient opens a client on an isolated, flushed database. The database
// is flushed again and the client closed when the test ends.
func RedisClient(t *testing.T, db int) *redis.Client {
	t.Helper()

	addr, password := ResolveRedis(t)
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err := client.Ping(ctx).Err()
	cancel()
	if err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: isolated DB ping failed (%v)", err)
	}
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("failed to flush isolated redis db %d: %v", db, err)
	}

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}
