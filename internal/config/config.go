package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DB       *DBconfig
	RabbitMq *RabbitMqconfig
	Redis    *Redisconfig
	Srv      *Serviceconfig
	App      *Appconfig
	Feed     *Feedconfig
	Payout   *Payoutconfig
	Matching *Matchingconfig
	Log      *Loggerconfig
}

type DBconfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	MaxConns   int    `yaml:"max_conns"`
	MaxRetries int    `yaml:"max_retries"`
}

type RabbitMqconfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type Redisconfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Serviceconfig struct {
	DispatchServicePort string `yaml:"dispatch_service"`
}

type Appconfig struct {
	PublicJwtSecret string `yaml:"public_jwt_secret"`
}

type Feedconfig struct {
	PageSize      int           `yaml:"page_size"`
	LongPollWait  time.Duration `yaml:"long_poll_wait"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Retention     time.Duration `yaml:"retention"`
}

// Payoutconfig is the versioned driver share of a completed job's billed total.
type Payoutconfig struct {
	Percent int    `yaml:"percent"`
	Version string `yaml:"version"`
}

type Matchingconfig struct {
	MaxRadiusKm float64 `yaml:"max_radius_km"`
	Limit       int     `yaml:"limit"`
}

type Loggerconfig struct {
	Level string `yaml:"level"`
}

func New() (*Config, error) {
	getEnv := func(key, def string) string {
		val := os.Getenv(key)
		if val == "" {
			fmt.Printf("using default key %v=%v\n", key, def)
			return def
		}
		return val
	}

	getEnvInt := func(key string, def int) int {
		valStr := os.Getenv(key)
		if valStr == "" {
			fmt.Printf("using default key %v=%v\n", key, def)
			return def
		}
		val, err := strconv.Atoi(valStr)
		if err != nil {
			fmt.Printf("cannot parse %v, using default key %v\n", key, def)
			return def
		}
		return val
	}

	getEnvFloat := func(key string, def float64) float64 {
		valStr := os.Getenv(key)
		if valStr == "" {
			fmt.Printf("using default key %v=%v\n", key, def)
			return def
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			fmt.Printf("cannot parse %v, using default key %v\n", key, def)
			return def
		}
		return val
	}

	getEnvBool := func(key string, def bool) bool {
		valStr := os.Getenv(key)
		if valStr == "" {
			fmt.Printf("using default key %v=%v\n", key, def)
			return def
		}
		val, err := strconv.ParseBool(valStr)
		if err != nil {
			fmt.Printf("cannot parse %v, using default key %v\n", key, def)
			return def
		}
		return val
	}

	getEnvDuration := func(key string, def time.Duration) time.Duration {
		valStr := os.Getenv(key)
		if valStr == "" {
			fmt.Printf("using default key %v=%v\n", key, def)
			return def
		}
		val, err := time.ParseDuration(valStr)
		if err != nil {
			fmt.Printf("cannot parse %v, using default key %v\n", key, def)
			return def
		}
		return val
	}

	cnf := &Config{
		DB: &DBconfig{
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "dispatch_user"),
			Password:   getEnv("DB_PASSWORD", "dispatch_pass"),
			Database:   getEnv("DB_NAME", "dispatch_db"),
			MaxConns:   getEnvInt("DB_MAX_CONNS", 10),
			MaxRetries: getEnvInt("DB_MAX_RETRIES", 5),
		},
		RabbitMq: &RabbitMqconfig{
			Enabled:  getEnvBool("RABBITMQ_ENABLED", true),
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnvInt("RABBITMQ_PORT", 5672),
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
			VHost:    strings.TrimPrefix(getEnv("RABBITMQ_VHOST", "/"), "/"),
		},
		Redis: &Redisconfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Srv: &Serviceconfig{
			DispatchServicePort: getEnv("DISPATCH_SERVICE_PORT", "3000"),
		},
		App: &Appconfig{
			PublicJwtSecret: getEnv("JWT_SECRET", "change-me"),
		},
		Feed: &Feedconfig{
			PageSize:      getEnvInt("FEED_PAGE_SIZE", 200),
			LongPollWait:  getEnvDuration("FEED_LONG_POLL_WAIT", 25*time.Second),
			RetryInterval: getEnvDuration("FEED_RETRY_INTERVAL", 1200*time.Millisecond),
			Retention:     getEnvDuration("FEED_RETENTION", 7*24*time.Hour),
		},
		Payout: &Payoutconfig{
			Percent: getEnvInt("PAYOUT_PERCENT", 60),
			Version: getEnv("PAYOUT_VERSION", "v1"),
		},
		Matching: &Matchingconfig{
			MaxRadiusKm: getEnvFloat("MATCHING_MAX_RADIUS_KM", 0),
			Limit:       getEnvInt("MATCHING_LIMIT", 100),
		},
		Log: &Loggerconfig{
			Level: getEnv("LOG_LEVEL", "INFO"),
		},
	}

	if err := cnf.validate(); err != nil {
		return nil, err
	}

	return cnf, nil
}

func (c *Config) validate() error {
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("FEED_PAGE_SIZE must be positive, got %d", c.Feed.PageSize)
	}
	if c.Feed.RetryInterval <= 0 || c.Feed.LongPollWait <= 0 {
		return fmt.Errorf("feed intervals must be positive")
	}
	if c.Payout.Percent < 0 || c.Payout.Percent > 100 {
		return fmt.Errorf("PAYOUT_PERCENT must be in range [0, 100], got %d", c.Payout.Percent)
	}
	if c.Matching.Limit <= 0 {
		return fmt.Errorf("MATCHING_LIMIT must be positive, got %d", c.Matching.Limit)
	}
	return nil
}
