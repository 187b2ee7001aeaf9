package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration read from the environment.
type Config struct {
	AppPort int

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	PostgresMaxOpenConns    int
	PostgresMaxIdleConns    int
	PostgresConnMaxLifetime time.Duration

	RedisEnabled  bool
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	CacheTTL    time.Duration
	CachePrefix string

	JWTSecret string
	JWTTTL    time.Duration

	LogPath  string
	LogLevel string

	LLMEndpoint string
	LLMAPIKey   string
	LLMModel    string
	LLMTimeout  time.Duration

	OTelEndpoint    string
	OTelSampleRatio float64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", 8080)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db", "insights")
	v.SetDefault("postgres_sslmode", "disable")
	v.SetDefault("postgres_max_open_conns", 25)
	v.SetDefault("postgres_max_idle_conns", 5)
	v.SetDefault("postgres_conn_max_lifetime", "30m")
	v.SetDefault("redis_enabled", false)
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_ttl", "30m")
	v.SetDefault("cache_prefix", "rbac:")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_ttl", "12h")
	v.SetDefault("log_path", "logs/app.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("llm_endpoint", "")
	v.SetDefault("llm_api_key", "")
	v.SetDefault("llm_model", "llama-3.3-70b-versatile")
	v.SetDefault("llm_timeout", "20s")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("otel_sample_ratio", 1.0)
}

// LoadConfig reads .env files when present, then environment variables.
func LoadConfig(envFiles ...string) (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:          v.GetInt("app_port"),
		PostgresHost:     v.GetString("postgres_host"),
		PostgresPort:     v.GetInt("postgres_port"),
		PostgresUser:     v.GetString("postgres_user"),
		PostgresPassword: v.GetString("postgres_password"),
		PostgresDB:       v.GetString("postgres_db"),
		PostgresSSLMode:  v.GetString("postgres_sslmode"),
		RedisEnabled:     v.GetBool("redis_enabled"),
		RedisHost:        v.GetString("redis_host"),
		RedisPort:        v.GetInt("redis_port"),
		RedisPassword:    v.GetString("redis_password"),
		RedisDB:          v.GetInt("redis_db"),
		CacheTTL:         v.GetDuration("cache_ttl"),
		CachePrefix:      v.GetString("cache_prefix"),
		JWTSecret:        v.GetString("jwt_secret"),
		JWTTTL:           v.GetDuration("jwt_ttl"),
		LogPath:          v.GetString("log_path"),
		LogLevel:         v.GetString("log_level"),
		LLMEndpoint:      v.GetString("llm_endpoint"),
		LLMAPIKey:        v.GetString("llm_api_key"),
		LLMModel:         v.GetString("llm_model"),
		LLMTimeout:       v.GetDuration("llm_timeout"),
		OTelEndpoint:     v.GetString("otel_endpoint"),
		OTelSampleRatio:  v.GetFloat64("otel_sample_ratio"),
	}

	cfg.PostgresMaxOpenConns = v.GetInt("postgres_max_open_conns")
	cfg.PostgresMaxIdleConns = v.GetInt("postgres_max_idle_conns")
	cfg.PostgresConnMaxLifetime = v.GetDuration("postgres_conn_max_lifetime")

	if cfg.AppPort <= 0 || cfg.AppPort > 65535 {
		return nil, fmt.Errorf("invalid APP_PORT %d", cfg.AppPort)
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("invalid CACHE_TTL %s", v.GetString("cache_ttl"))
	}
	return cfg, nil
}

// PostgresDSN builds the libpq connection string shared by gorm and database/sql.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

// RedisAddr is host:port for the Redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
