package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const ServiceName = "marketplace"

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Env  string
	// V1Sunset, when set, marks /v1 deprecated with this sunset date.
	V1Sunset *time.Time
}

// DBConfig holds database configuration
type DBConfig struct {
	URL            string
	MaxConns       int32
	MigrateOnStart bool
}

// RedisConfig holds cache and lock configuration
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	WizardTTL    time.Duration
	ProfileTTL   time.Duration
	DraftLockTTL time.Duration
}

// MinioConfig holds object storage configuration for store logos
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket        string
	PublicURL     string
	UploadTimeout time.Duration
}

// AuthConfig holds identity provider settings. JWKSURL takes precedence;
// JWTSecret is only used when no JWKS endpoint is configured.
type AuthConfig struct {
	JWKSURL   string
	JWTSecret string
	Issuer    string
	RoleClaim string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// JobsConfig holds background job configuration
type JobsConfig struct {
	QuotaAuditInterval time.Duration
}

// Config holds all configuration
type Config struct {
	ServiceName string
	Server      ServerConfig
	DB          DBConfig
	Redis       RedisConfig
	Minio       MinioConfig
	Auth        AuthConfig
	Log         LogConfig
	Jobs        JobsConfig
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: ServiceName,
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		DB: DBConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MigrateOnStart: getEnvAsBool("DB_MIGRATE_ON_START", true),
		},
		Redis: RedisConfig{
			Addr:         redisAddr(getEnv("REDIS_ADDR", "localhost:6379")),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			WizardTTL:    getEnvAsDuration("WIZARD_STATE_TTL", 7*24*time.Hour),
			ProfileTTL:   getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),
			DraftLockTTL: getEnvAsDuration("DRAFT_LOCK_TTL", 10*time.Second),
		},
		Minio: MinioConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:     getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:        getEnvAsBool("MINIO_USE_SSL", false),
			Bucket:        getEnv("MINIO_BUCKET", "store-logos"),
			PublicURL:     strings.TrimRight(getEnv("MINIO_PUBLIC_URL", ""), "/"),
			UploadTimeout: getEnvAsDuration("MINIO_UPLOAD_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			JWKSURL:   getEnv("AUTH_JWKS_URL", ""),
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_ISSUER", ""),
			RoleClaim: getEnv("AUTH_ROLE_CLAIM", "role"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Jobs: JobsConfig{
			QuotaAuditInterval: getEnvAsDuration("QUOTA_AUDIT_INTERVAL", time.Hour),
		},
	}

	if sunset := getEnv("API_V1_SUNSET", ""); sunset != "" {
		t, err := time.Parse(time.DateOnly, sunset)
		if err != nil {
			return nil, fmt.Errorf("API_V1_SUNSET must be a YYYY-MM-DD date: %w", err)
		}
		cfg.Server.V1Sunset = &t
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	if c.DB.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if c.Auth.JWKSURL == "" && c.Auth.JWTSecret == "" {
		return errors.New("either AUTH_JWKS_URL or JWT_SECRET must be set")
	}
	if c.Jobs.QuotaAuditInterval <= 0 {
		return errors.New("QUOTA_AUDIT_INTERVAL must be positive")
	}
	if c.Minio.UploadTimeout < 0 {
		return errors.New("MINIO_UPLOAD_TIMEOUT must not be negative")
	}
	return nil
}

// LogFields returns the non-secret settings for the startup log line.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("port", c.Server.Port),
		zap.String("redis_addr", c.Redis.Addr),
		zap.String("minio_endpoint", c.Minio.Endpoint),
		zap.String("minio_bucket", c.Minio.Bucket),
		zap.Duration("upload_timeout", c.Minio.UploadTimeout),
		zap.Bool("jwks", c.Auth.JWKSURL != ""),
		zap.Duration("quota_audit_interval", c.Jobs.QuotaAuditInterval),
	}
}

// redisAddr strips a redis:// or rediss:// scheme, leaving host:port.
func redisAddr(addr string) string {
	for _, scheme := range []string{"redis://", "rediss://"} {
		if strings.HasPrefix(addr, scheme) {
			return strings.TrimPrefix(addr, scheme)
		}
	}
	return addr
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
