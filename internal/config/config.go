// Package config loads runtime settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"antique-auction/internal/money"
	"antique-auction/utils"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	Port     string
	LogLevel string

	JWTSecret string

	StoreDriver string
	DatabaseURL string

	RabbitMQURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BidsPerMinute int

	MinIncrement   int64 // minor units
	LockTimeout    time.Duration
	MaxWaiters     int
	EndingSoonLead time.Duration
	WSReadTimeout  time.Duration

	SeedDemo bool
}

// Addr is the listen address for the HTTP server
func (c Config) Addr() string {
	return ":" + c.Port
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		utils.Warn("config: failed to read .env", map[string]any{"error": err.Error()})
	}

	cfg := Config{
		Port:          getenv("PORT", "8080"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		StoreDriver:   strings.ToLower(getenv("STORE_DRIVER", DriverMemory)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		SeedDemo:      getbool("SEED_DEMO_AUCTIONS", false),
	}

	var err error
	if cfg.RedisDB, err = getint("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.BidsPerMinute, err = getint("RATE_LIMIT_BIDS_PER_MINUTE", 0); err != nil {
		return Config{}, err
	}
	if cfg.MaxWaiters, err = getint("BID_MAX_WAITERS", 64); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = getduration("BID_LOCK_TIMEOUT", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.EndingSoonLead, err = getduration("AUCTION_ENDING_SOON_LEAD", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.WSReadTimeout, err = getduration("WS_READ_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}

	cfg.MinIncrement = 1
	if raw := os.Getenv("BID_MIN_INCREMENT"); raw != "" {
		if cfg.MinIncrement, err = money.Parse(raw); err != nil {
			return Config{}, fmt.Errorf("config: BID_MIN_INCREMENT: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.JWTSecret == "":
		return fmt.Errorf("config: JWT_SECRET is required")
	case c.StoreDriver != DriverMemory && c.StoreDriver != DriverPostgres:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	case c.StoreDriver == DriverPostgres && c.DatabaseURL == "":
		return fmt.Errorf("config: DATABASE_URL is required for the postgres store")
	case c.MinIncrement <= 0:
		return fmt.Errorf("config: BID_MIN_INCREMENT must be positive")
	case c.MinIncrement > money.MaxAmount:
		return fmt.Errorf("config: BID_MIN_INCREMENT must not exceed %s", money.Format(money.MaxAmount))
	case c.LockTimeout <= 0:
		return fmt.Errorf("config: BID_LOCK_TIMEOUT must be positive")
	case c.MaxWaiters <= 0:
		return fmt.Errorf("config: BID_MAX_WAITERS must be positive")
	case c.EndingSoonLead < 0:
		return fmt.Errorf("config: AUCTION_ENDING_SOON_LEAD must not be negative")
	case c.BidsPerMinute < 0:
		return fmt.Errorf("config: RATE_LIMIT_BIDS_PER_MINUTE must not be negative")
	}
	return nil
}

// NewRedisClient connects to Redis when REDIS_ADDR is set. It returns nil
// when Redis is not configured or unreachable; callers run without rate
// limiting in that case.
func NewRedisClient(cfg Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		utils.Warn("config: redis unreachable, rate limiting disabled", map[string]any{
			"addr":  cfg.RedisAddr,
			"error": err.Error(),
		})
		client.Close()
		return nil
	}
	return client
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getduration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
