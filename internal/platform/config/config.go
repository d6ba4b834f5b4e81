package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                     string
	DatabaseURL              string
	DBMaxConns               int
	JWTSecret                string
	JWTTTL                   time.Duration
	DataEncryptionKey        string
	Environment              string
	BaseURL                  string
	CorporateEmailDomain     string
	SeedAdminEmail           string
	SeedAdminPassword        string
	SeedAdminName            string
	EmailFrom                string
	EmailEnabled             bool
	SMTPHost                 string
	SMTPPort                 int
	SMTPUser                 string
	SMTPPassword             string
	SMTPUseTLS               bool
	EmailRatePerMinute       int
	RunMigrations            bool
	RunSeed                  bool
	MigrationsDir            string
	MaxBodyBytes             int64
	RateLimitPerMinute       int
	TrustedProxies           []string
	MetricsEnabled           bool
	LogLevel                 string
	LogFormat                string
	LogFile                  string
	StatsRebuildSchedule     string
	GARSnapshotSchedule      string
	RetentionSchedule        string
	NotificationRetention    time.Duration
	JobRunRetention          time.Duration
	GARQualityDivisor        float64
	GARRejectNegativeWeights bool
}

// Load reads the process environment. A .env file in the working directory,
// when present, fills in variables that are not already set.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("dotenv load failed", "err", err)
	}

	return Config{
		Addr:                     getEnv("APP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		DBMaxConns:               getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		JWTTTL:                   getEnvDuration("JWT_TTL", 24*time.Hour),
		DataEncryptionKey:        getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:              getEnv("APP_ENV", "development"),
		BaseURL:                  getEnv("APP_BASE_URL", "http://localhost:8080"),
		CorporateEmailDomain:     getEnv("CORPORATE_EMAIL_DOMAIN", "wink.ru"),
		SeedAdminEmail:           getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:        getEnv("SEED_ADMIN_PASSWORD", ""),
		SeedAdminName:            getEnv("SEED_ADMIN_NAME", "Administrator"),
		EmailFrom:                getEnv("EMAIL_FROM", "noreply@wink.ru"),
		EmailEnabled:             getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 getEnvInt("SMTP_PORT", 587),
		SMTPUser:                 getEnv("SMTP_USER", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:               getEnvBool("SMTP_USE_TLS", true),
		EmailRatePerMinute:       getEnvInt("EMAIL_RATE_PER_MINUTE", 30),
		RunMigrations:            getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:                  getEnvBool("RUN_SEED", true),
		MigrationsDir:            getEnv("MIGRATIONS_DIR", "migrations"),
		MaxBodyBytes:             int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:       getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:           getEnvList("TRUSTED_PROXIES"),
		MetricsEnabled:           getEnvBool("METRICS_ENABLED", true),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogFormat:                getEnv("LOG_FORMAT", "json"),
		LogFile:                  getEnv("LOG_FILE", ""),
		StatsRebuildSchedule:     getEnv("STATS_REBUILD_SCHEDULE", "0 2 * * *"),
		GARSnapshotSchedule:      getEnv("GAR_SNAPSHOT_SCHEDULE", "30 2 * * *"),
		RetentionSchedule:        getEnv("RETENTION_SCHEDULE", "0 3 * * *"),
		NotificationRetention:    getEnvDuration("NOTIFICATION_RETENTION", 90*24*time.Hour),
		JobRunRetention:          getEnvDuration("JOB_RUN_RETENTION", 180*24*time.Hour),
		GARQualityDivisor:        getEnvFloat("GAR_QUALITY_DIVISOR", 5.0),
		GARRejectNegativeWeights: getEnvBool("GAR_REJECT_NEGATIVE_WEIGHTS", false),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for mfa secrets")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.GARQualityDivisor <= 0 {
		return fmt.Errorf("GAR_QUALITY_DIVISOR must be positive")
	}
	return nil
}
