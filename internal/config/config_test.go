package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"DB_DRIVER", "USE_KAFKA", "OUTBOX_BATCH_SIZE", "CREDIT_TIMEOUT", "CATALOG_CACHE_TTL"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.False(t, cfg.UseKafka)
	assert.Equal(t, 50, cfg.OutboxLimit)
	assert.Equal(t, 5*time.Second, cfg.CreditTimeout)
	assert.Equal(t, time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, cfg.SQLitePath, cfg.DSN())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/promolab")
	t.Setenv("USE_KAFKA", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("OUTBOX_INTERVAL", "250ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://u:p@localhost/promolab", cfg.DSN())
	assert.True(t, cfg.UseKafka)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 250*time.Millisecond, cfg.OutboxPeriod)
	assert.Equal(t, 50, cfg.OutboxLimit)
}
