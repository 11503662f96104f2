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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Collab   CollabConfig
	Grading  GradingConfig
	Reports  ReportsConfig
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
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CollabConfig tunes the realtime collaboration engine.
type CollabConfig struct {
	// SyncWindow is how long a late joiner collects peer sync
	// responses before materializing code areas.
	SyncWindow time.Duration
	// SendBuffer sizes each websocket client's outbound queue.
	SendBuffer int
	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration
	// PongTimeout bounds how long a client may stay silent.
	PongTimeout time.Duration
}

// GradingConfig points at the external solution runner.
type GradingConfig struct {
	Enabled     bool
	RunnerURL   string
	Timeout     time.Duration
	Workers     int
	MaxRetries  int
	RetryDelay  time.Duration
	CallbackKey string
}

// ReportsConfig configures event-history export artifacts.
type ReportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
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
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitList(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Collab = CollabConfig{
		SyncWindow:   v.GetDuration("COLLAB_SYNC_WINDOW"),
		SendBuffer:   v.GetInt("COLLAB_SEND_BUFFER"),
		WriteTimeout: v.GetDuration("COLLAB_WRITE_TIMEOUT"),
		PongTimeout:  v.GetDuration("COLLAB_PONG_TIMEOUT"),
	}

	cfg.Grading = GradingConfig{
		Enabled:     v.GetBool("GRADING_ENABLED"),
		RunnerURL:   v.GetString("GRADING_RUNNER_URL"),
		Timeout:     v.GetDuration("GRADING_TIMEOUT"),
		Workers:     v.GetInt("GRADING_WORKERS"),
		MaxRetries:  v.GetInt("GRADING_MAX_RETRIES"),
		RetryDelay:  v.GetDuration("GRADING_RETRY_DELAY"),
		CallbackKey: v.GetString("GRADING_CALLBACK_KEY"),
	}

	cfg.Reports = ReportsConfig{
		Enabled:         v.GetBool("REPORTS_ENABLED"),
		StorageDir:      v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    v.GetDuration("REPORTS_SIGNED_URL_TTL"),
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
	v.SetDefault("DB_NAME", "club_collab")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_ISSUER", "club-platform")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("COLLAB_SYNC_WINDOW", 500*time.Millisecond)
	v.SetDefault("COLLAB_SEND_BUFFER", 64)
	v.SetDefault("COLLAB_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("COLLAB_PONG_TIMEOUT", 60*time.Second)

	v.SetDefault("GRADING_ENABLED", true)
	v.SetDefault("GRADING_TIMEOUT", 30*time.Second)
	v.SetDefault("GRADING_WORKERS", 2)
	v.SetDefault("GRADING_MAX_RETRIES", 3)
	v.SetDefault("GRADING_RETRY_DELAY", 2*time.Second)

	v.SetDefault("REPORTS_ENABLED", true)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", 24*time.Hour)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
