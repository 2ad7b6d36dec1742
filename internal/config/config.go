package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	NATS     NATSConfig
	Auth     AuthConfig
	Wallet   WalletConfig
	Ride     RideConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// NATSConfig holds the event bus configuration.
type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
}

// AuthConfig holds the JWT verification secret.
type AuthConfig struct {
	JWTSecret string
}

// WalletConfig holds the withdrawal rules and ledger settings.
type WalletConfig struct {
	MontantMinimum     int64
	SeuilAutomatique   int64
	DelaiEntreRetraits time.Duration
	FraisRetrait       int64
	HoldingPeriod      time.Duration
	Timezone           string
}

// RideConfig holds the ride lifecycle policy.
type RideConfig struct {
	AllowStartWithoutArrival bool
	CancellationFee          int64
}

// LogConfig holds logger settings.
type LogConfig struct {
	Environment string
	Level       string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables
// take precedence over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
			CORSOrigins:     getListEnv("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "taptapgo"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			AutoMigrate:     getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 20),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "taptapgo-core"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		NATS: NATSConfig{
			Enabled:       getBoolEnv("NATS_ENABLED", false),
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "taptapgo"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Wallet: WalletConfig{
			MontantMinimum:     getInt64Env("WALLET_MONTANT_MINIMUM", 200),
			SeuilAutomatique:   getInt64Env("WALLET_SEUIL_AUTOMATIQUE", 1000),
			DelaiEntreRetraits: getDurationEnv("WALLET_DELAI_ENTRE_RETRAITS", 24*time.Hour),
			FraisRetrait:       getInt64Env("WALLET_FRAIS_RETRAIT", 0),
			HoldingPeriod:      getDurationEnv("WALLET_HOLDING_PERIOD", 0),
			Timezone:           getEnv("WALLET_TIMEZONE", "America/Port-au-Prince"),
		},
		Ride: RideConfig{
			AllowStartWithoutArrival: getBoolEnv("RIDE_ALLOW_START_WITHOUT_ARRIVAL", false),
			CancellationFee:          getInt64Env("RIDE_CANCELLATION_FEE", 0),
		},
		Log: LogConfig{
			Environment: getEnv("APP_ENV", "development"),
			Level:       getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	w := c.Wallet
	if w.MontantMinimum < 0 || w.SeuilAutomatique < 0 || w.FraisRetrait < 0 {
		errs = append(errs, errors.New("wallet amounts must be >= 0"))
	}
	if w.DelaiEntreRetraits < 0 || w.HoldingPeriod < 0 {
		errs = append(errs, errors.New("wallet durations must be >= 0"))
	}
	if w.SeuilAutomatique > 0 && w.SeuilAutomatique < w.MontantMinimum {
		errs = append(errs, fmt.Errorf("seuil automatique %d is below montant minimum %d", w.SeuilAutomatique, w.MontantMinimum))
	}
	if w.FraisRetrait > 0 && w.FraisRetrait >= w.MontantMinimum {
		errs = append(errs, fmt.Errorf("frais retrait %d must be below montant minimum %d", w.FraisRetrait, w.MontantMinimum))
	}
	if _, err := time.LoadLocation(w.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid WALLET_TIMEZONE: %w", err))
	}

	if c.Ride.CancellationFee < 0 {
		errs = append(errs, errors.New("ride cancellation fee must be >= 0"))
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, errors.New("DB_MAX_IDLE_CONNS must not exceed DB_MAX_OPEN_CONNS"))
	}
	return errors.Join(errs...)
}

// Location returns the wallet timezone, falling back to UTC.
func (c WalletConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
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

func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
