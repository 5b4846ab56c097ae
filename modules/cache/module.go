package cache

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings. An empty Addr disables the cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Module owns the Redis connections: a go-redis client for cache-aside
// and a Fiber storage used by the HTTP rate limiter.
type Module struct {
	cfg     Config
	client  *redis.Client
	cache   *Cache
	storage *fiberredis.Storage
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new cache module.
func NewModule(cfg Config) *Module {
	if cfg.Prefix == "" {
		cfg.Prefix = "cropcare:"
	}
	return &Module{cfg: cfg}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// Enabled reports whether a Redis address was configured.
func (m *Module) Enabled() bool {
	return m.cfg.Addr != ""
}

// Start connects to Redis when enabled.
func (m *Module) Start(ctx context.Context) error {
	if !m.Enabled() {
		log.Println("[cache] Redis not configured, caching disabled")
		return nil
	}

	m.client = redis.NewClient(&redis.Options{
		Addr:         m.cfg.Addr,
		Password:     m.cfg.Password,
		DB:           m.cfg.DB,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// fiberredis.New panics when Redis is unreachable, so ping first.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	m.cache = New(m.client, m.cfg.Prefix)

	host, port := parseRedisAddr(m.cfg.Addr)
	m.storage = fiberredis.New(fiberredis.Config{
		Host:     host,
		Port:     port,
		Password: m.cfg.Password,
		Database: m.cfg.DB,
		PoolSize: 10,
	})

	log.Printf("[cache] Connected to Redis at %s (prefix: %s)", m.cfg.Addr, m.cfg.Prefix)
	return nil
}

// Stop closes the Redis connections.
func (m *Module) Stop(_ context.Context) error {
	if m.storage != nil {
		if err := m.storage.Close(); err != nil {
			log.Printf("[cache] Error closing limiter storage: %v", err)
		}
	}
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	log.Println("[cache] Module stopped")
	return nil
}

// Store returns the cache-aside store, or a Noop store when disabled.
// Call after Start.
func (m *Module) Store() Store {
	if m.cache == nil {
		return Noop{}
	}
	return m.cache
}

// LimiterStorage returns the Fiber storage for the rate limiter, or nil
// when Redis is disabled (the limiter then keeps counters in memory).
func (m *Module) LimiterStorage() fiber.Storage {
	if m.storage == nil {
		return nil
	}
	return m.storage
}

// Health pings Redis.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if !m.Enabled() {
		return mono.HealthStatus{Healthy: true, Message: "disabled"}
	}
	if m.cache == nil {
		return mono.HealthStatus{Healthy: false, Message: "cache not initialized"}
	}
	if err := m.cache.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis ping failed: %v", err)}
	}

	stats := m.cache.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"redis_addr": m.cfg.Addr,
			"hits":       stats.Hits,
			"misses":     stats.Misses,
			"hit_rate":   stats.HitRate,
		},
	}
}

// parseRedisAddr splits host:port, defaulting to localhost:6379.
func parseRedisAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	if host == "" {
		host = "localhost"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}
