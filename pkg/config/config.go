package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Workflow    WorkflowConfig
	Identity    IdentityConfig
	AuditExport AuditExportConfig
	RFID        RFIDConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	Namespace   string
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// WorkflowConfig tunes validation thresholds and audit query bounds.
type WorkflowConfig struct {
	MinPasswordLength int
	AuditDefaultLimit int
	AuditMaxLimit     int
}

// IdentityConfig governs display-name caching for the identity directory.
type IdentityConfig struct {
	NameCacheTTL time.Duration
}

// AuditExportConfig toggles asynchronous publication of audit entries to a Redis stream.
type AuditExportConfig struct {
	Enabled    bool
	Stream     string
	MaxLen     int64
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// RFIDConfig throttles card scans per reader.
type RFIDConfig struct {
	ScanRatePerSecond float64
	ScanBurst         int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:     v.GetBool("ENABLE_REDIS"),
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		PoolSize:    positiveInt(v.GetInt("REDIS_POOL_SIZE"), 10),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
		Namespace:   v.GetString("REDIS_NAMESPACE"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Workflow = WorkflowConfig{
		MinPasswordLength: positiveInt(v.GetInt("REGISTRATION_MIN_PASSWORD_LENGTH"), 3),
		AuditDefaultLimit: positiveInt(v.GetInt("AUDIT_DEFAULT_LIMIT"), 500),
		AuditMaxLimit:     positiveInt(v.GetInt("AUDIT_MAX_LIMIT"), 2000),
	}
	if cfg.Workflow.AuditDefaultLimit > cfg.Workflow.AuditMaxLimit {
		cfg.Workflow.AuditDefaultLimit = cfg.Workflow.AuditMaxLimit
	}

	cfg.Identity = IdentityConfig{
		NameCacheTTL: parseDuration(v.GetString("IDENTITY_NAME_CACHE_TTL"), 10*time.Minute),
	}

	cfg.AuditExport = AuditExportConfig{
		Enabled:    v.GetBool("ENABLE_AUDIT_EXPORT"),
		Stream:     v.GetString("AUDIT_EXPORT_STREAM"),
		MaxLen:     v.GetInt64("AUDIT_EXPORT_MAXLEN"),
		Workers:    positiveInt(v.GetInt("AUDIT_EXPORT_WORKERS"), 1),
		Retries:    positiveInt(v.GetInt("AUDIT_EXPORT_RETRIES"), 3),
		RetryDelay: parseDuration(v.GetString("AUDIT_EXPORT_RETRY_DELAY"), time.Second),
	}

	cfg.RFID = RFIDConfig{
		ScanRatePerSecond: v.GetFloat64("RFID_SCAN_RATE_PER_SECOND"),
		ScanBurst:         positiveInt(v.GetInt("RFID_SCAN_BURST"), 5),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "smartpass")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_NAMESPACE", "smartpass")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "smartpass")
	v.SetDefault("JWT_EXPIRATION", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REGISTRATION_MIN_PASSWORD_LENGTH", 3)
	v.SetDefault("AUDIT_DEFAULT_LIMIT", 500)
	v.SetDefault("AUDIT_MAX_LIMIT", 2000)
	v.SetDefault("IDENTITY_NAME_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_AUDIT_EXPORT", false)
	v.SetDefault("AUDIT_EXPORT_STREAM", "smartpass:audit")
	v.SetDefault("AUDIT_EXPORT_MAXLEN", 100000)
	v.SetDefault("AUDIT_EXPORT_WORKERS", 1)
	v.SetDefault("AUDIT_EXPORT_RETRIES", 3)
	v.SetDefault("AUDIT_EXPORT_RETRY_DELAY", "1s")

	v.SetDefault("RFID_SCAN_RATE_PER_SECOND", 2.0)
	v.SetDefault("RFID_SCAN_BURST", 5)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
