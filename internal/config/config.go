package config

import (
	"os"
	"strconv"
	"time"

	"github.com/subosito/gotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Sync     SyncConfig
	Billing  BillingConfig
	View     ViewConfig
	Auth     AuthConfig
	NewRelic NewRelicConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string
}

// Store backends.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// StoreConfig selects the DurableStore backend.
type StoreConfig struct {
	Backend string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AMQPConfig holds RabbitMQ configuration.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// Sync transports.
const (
	TransportPostgres = "postgres"
	TransportAMQP     = "amqp"
	TransportNone     = "none"
)

// SyncConfig holds backend sync configuration.
type SyncConfig struct {
	Transport string
	Interval  time.Duration
	LockTTL   time.Duration
}

// BillingConfig holds the tunable billing constants.
type BillingConfig struct {
	FreeWaitingSeconds int64
	PricePerSecond     string
	Currency           string
}

// ViewConfig holds presentation settings for the live view.
type ViewConfig struct {
	TickInterval   time.Duration
	ButtonsSwapped bool
}

// AuthConfig holds driver token verification settings.
type AuthConfig struct {
	JWTSecret string
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = gotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", StoreRedis),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ridemeter"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "billing"),
		},
		Sync: SyncConfig{
			Transport: getEnv("SYNC_TRANSPORT", TransportPostgres),
			Interval:  getDurationEnv("SYNC_INTERVAL", 30*time.Second),
			LockTTL:   getDurationEnv("SYNC_LOCK_TTL", 20*time.Second),
		},
		Billing: BillingConfig{
			FreeWaitingSeconds: int64(getIntEnv("BILLING_FREE_WAITING_SECONDS", 180)),
			PricePerSecond:     getEnv("BILLING_PRICE_PER_SECOND", "0.05"),
			Currency:           getEnv("BILLING_CURRENCY", "USD"),
		},
		View: ViewConfig{
			TickInterval:   getDurationEnv("VIEW_TICK_INTERVAL", time.Second),
			ButtonsSwapped: getBoolEnv("VIEW_BUTTONS_SWAPPED", false),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ridemeter"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
