package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "market-api", cfg.ServiceName)
	assert.Contains(t, cfg.PostgresDSN, "postgres://")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost:5432/test")
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("SERVICE_NAME", "market-gateway")

	cfg := Load()

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "postgres://u:p@localhost:5432/test", cfg.PostgresDSN)
	assert.Equal(t, "localhost:6380", cfg.RedisAddr)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "market-gateway", cfg.ServiceName)
}
