package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver    string
	SQLitePath  string
	DatabaseURL string
	RedisAddr   string

	UseKafka               bool
	KafkaBrokers           []string
	KafkaTransactionsTopic string
	KafkaGroupID           string

	CatalogCacheTTL time.Duration
	OutboxPeriod    time.Duration
	OutboxLimit     int

	CreditServiceURL string
	CreditTimeout    time.Duration

	ClickHouseAddr string
	ClickHouseDB   string

	OTelEndpoint string
	HTTPPort     string
	LogLevel     string
}

// LoadConfig lee el entorno (y .env si existe) con valores por defecto para local.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		SQLitePath:  getEnv("SQLITE_PATH", "./promolab.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),

		UseKafka:               getEnvBool("USE_KAFKA", false),
		KafkaBrokers:           strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTransactionsTopic: getEnv("KAFKA_TRANSACTIONS_TOPIC", "transactions"),
		KafkaGroupID:           getEnv("KAFKA_GROUP_ID", "promolab-promotion-service"),

		CatalogCacheTTL: getEnvDuration("CATALOG_CACHE_TTL", time.Minute),
		OutboxPeriod:    getEnvDuration("OUTBOX_INTERVAL", time.Second),
		OutboxLimit:     getEnvInt("OUTBOX_BATCH_SIZE", 50),

		CreditServiceURL: getEnv("CREDIT_SERVICE_URL", "http://localhost:8081"),
		CreditTimeout:    getEnvDuration("CREDIT_TIMEOUT", 5*time.Second),

		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "default"),

		OTelEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
}

// DSN devuelve la cadena de conexión del driver elegido.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.SQLitePath
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
