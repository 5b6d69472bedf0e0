package config

import (
	"errors"
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
	Academic    AcademicConfig
	Cache       CacheConfig
	Transcripts TranscriptsConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AcademicConfig provides institution-wide academic policy defaults.
// These are fallbacks consumed when no configurable policy row exists yet.
type AcademicConfig struct {
	DefaultMinCredits  int
	DefaultMaxCredits  int
	ProbationThreshold float64
	WarningThreshold   float64
	ApplicationMinGPA  float64
}

// CacheConfig tunes the redis-backed response cache for heavy read endpoints.
type CacheConfig struct {
	Enabled       bool
	TranscriptTTL time.Duration
	ScheduleTTL   time.Duration
}

// TranscriptsConfig configures asynchronous transcript document generation.
type TranscriptsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
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
		if !errors.As(err, &notFound) {
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Academic = AcademicConfig{
		DefaultMinCredits:  v.GetInt("ACADEMIC_DEFAULT_MIN_CREDITS"),
		DefaultMaxCredits:  v.GetInt("ACADEMIC_DEFAULT_MAX_CREDITS"),
		ProbationThreshold: v.GetFloat64("ACADEMIC_PROBATION_THRESHOLD"),
		WarningThreshold:   v.GetFloat64("ACADEMIC_WARNING_THRESHOLD"),
		ApplicationMinGPA:  v.GetFloat64("ACADEMIC_APPLICATION_MIN_GPA"),
	}

	cfg.Cache = CacheConfig{
		Enabled:       v.GetBool("ENABLE_RESPONSE_CACHE"),
		TranscriptTTL: parseDuration(v.GetString("TRANSCRIPT_CACHE_TTL"), 10*time.Minute),
		ScheduleTTL:   parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Transcripts = TranscriptsConfig{
		Enabled:           v.GetBool("ENABLE_TRANSCRIPT_EXPORT"),
		StorageDir:        v.GetString("TRANSCRIPT_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("TRANSCRIPT_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("TRANSCRIPT_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("TRANSCRIPT_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("TRANSCRIPT_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("TRANSCRIPT_WORKER_RETRIES"),
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
	v.SetDefault("DB_NAME", "uni_sis")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ACADEMIC_DEFAULT_MIN_CREDITS", 12)
	v.SetDefault("ACADEMIC_DEFAULT_MAX_CREDITS", 21)
	v.SetDefault("ACADEMIC_PROBATION_THRESHOLD", 2.0)
	v.SetDefault("ACADEMIC_WARNING_THRESHOLD", 2.5)
	v.SetDefault("ACADEMIC_APPLICATION_MIN_GPA", 2.0)

	v.SetDefault("ENABLE_RESPONSE_CACHE", false)
	v.SetDefault("TRANSCRIPT_CACHE_TTL", "10m")
	v.SetDefault("SCHEDULE_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_TRANSCRIPT_EXPORT", false)
	v.SetDefault("TRANSCRIPT_STORAGE_DIR", "./exports")
	v.SetDefault("TRANSCRIPT_SIGNED_URL_SECRET", "dev_transcripts_secret")
	v.SetDefault("TRANSCRIPT_SIGNED_URL_TTL", "24h")
	v.SetDefault("TRANSCRIPT_CLEANUP_INTERVAL", "1h")
	v.SetDefault("TRANSCRIPT_WORKER_CONCURRENCY", 1)
	v.SetDefault("TRANSCRIPT_WORKER_RETRIES", 3)
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
