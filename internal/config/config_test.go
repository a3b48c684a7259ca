package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfigDefaultsAndOverrides(t *testing.T) {
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 30, cfg.Capacity)
	assert.Equal(t, "user_route", cfg.KeyStrategy)

	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "3s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg = LoadRateLimitConfig()
	assert.Equal(t, 5, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 3*time.Second, cfg.RefillInterval)
	assert.Equal(t, 15*time.Second, cfg.TTL, "ttl is raised to five refill intervals")
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_ENABLED", "off")
	cfg := LoadCacheConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 10*time.Minute, cfg.TTL)
}

func TestLoadQueueConfigURLPrecedence(t *testing.T) {
	t.Setenv("AMQP_URL", "amqp://b/")
	assert.Equal(t, "amqp://b/", LoadQueueConfig().URL)
	t.Setenv("RABBITMQ_URL", "amqp://a/")
	cfg := LoadQueueConfig()
	assert.Equal(t, "amqp://a/", cfg.URL)
	assert.Equal(t, "program.changed", cfg.Queue)
}
