package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"earnx/internal/ledger"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	JWT       JWTConfig       `toml:"jwt"`
	OAuth     OAuthConfig     `toml:"oauth"`
	Admin     AdminConfig     `toml:"admin"`
	Ledger    LedgerConfig    `toml:"ledger"`
	PriceFeed PriceFeedConfig `toml:"price_feed"`
	Kafka     KafkaConfig     `toml:"kafka"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Port         string        `toml:"port"`
	Env          string        `toml:"env"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `toml:"driver"` // mysql | postgres | memory
	DSN             string        `toml:"dsn"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type JWTConfig struct {
	AccessSecret  string        `toml:"access_secret"`
	RefreshSecret string        `toml:"refresh_secret"`
	AccessExpiry  time.Duration `toml:"access_expiry"`
	RefreshExpiry time.Duration `toml:"refresh_expiry"`
	Issuer        string        `toml:"issuer"`
}

type OAuthConfig struct {
	GoogleClientID     string `toml:"google_client_id"`
	GoogleClientSecret string `toml:"google_client_secret"`
	GoogleRedirectURL  string `toml:"google_redirect_url"`
}

// AdminConfig seeds the operator account used by the admin console.
type AdminConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
}

type LedgerConfig struct {
	RewardAmount         decimal.Decimal `toml:"reward_amount"`
	RewardCooldown       time.Duration   `toml:"reward_cooldown"`
	MinWithdrawal        decimal.Decimal `toml:"min_withdrawal"`
	WithdrawalFeePercent decimal.Decimal `toml:"withdrawal_fee_percent"`
	ReferralAdsNeeded    int             `toml:"referral_ads_needed"`
	ReferralTasksNeeded  int             `toml:"referral_tasks_needed"`
	ReferralBonus        decimal.Decimal `toml:"referral_bonus"`
	ReferralPrefix       string          `toml:"referral_prefix"`
	MaxConflictRetries   int             `toml:"max_conflict_retries"`
	TaskUserSharePercent decimal.Decimal `toml:"task_user_share_percent"`
	AdRewardAmount       decimal.Decimal `toml:"ad_reward_amount"`
}

// Rules converts the ledger section into engine rules.
func (l LedgerConfig) Rules() ledger.Rules {
	return ledger.Rules{
		RewardAmount:         l.RewardAmount,
		RewardCooldown:       l.RewardCooldown,
		MinWithdrawal:        l.MinWithdrawal,
		WithdrawalFeePercent: l.WithdrawalFeePercent,
		ReferralAdsNeeded:    l.ReferralAdsNeeded,
		ReferralTasksNeeded:  l.ReferralTasksNeeded,
		ReferralBonus:        l.ReferralBonus,
		ReferralPrefix:       l.ReferralPrefix,
	}
}

type PriceFeedConfig struct {
	Enabled  bool          `toml:"enabled"`
	BaseURL  string        `toml:"base_url"`
	Interval time.Duration `toml:"interval"`
	Timeout  time.Duration `toml:"timeout"`
}

// KafkaConfig enables ledger event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text | json
}

func DefaultConfig() *Config {
	rules := ledger.DefaultRules()
	return &Config{
		Server: ServerConfig{
			Port:         "8099",
			Env:          "development",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			DSN:             "earnx:earnx@tcp(localhost:3306)/earnx?charset=utf8mb4&parseTime=True&loc=UTC",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  "change-me-in-production",
			RefreshSecret: "change-me-refresh",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "earnx",
		},
		Admin: AdminConfig{
			Email: "admin@earnx.local",
			Name:  "EarnX Admin",
		},
		Ledger: LedgerConfig{
			RewardAmount:         rules.RewardAmount,
			RewardCooldown:       rules.RewardCooldown,
			MinWithdrawal:        rules.MinWithdrawal,
			WithdrawalFeePercent: rules.WithdrawalFeePercent,
			ReferralAdsNeeded:    rules.ReferralAdsNeeded,
			ReferralTasksNeeded:  rules.ReferralTasksNeeded,
			ReferralBonus:        rules.ReferralBonus,
			ReferralPrefix:       rules.ReferralPrefix,
			MaxConflictRetries:   3,
			TaskUserSharePercent: decimal.NewFromInt(20),
			AdRewardAmount:       decimal.RequireFromString("0.15"),
		},
		PriceFeed: PriceFeedConfig{
			Enabled:  true,
			BaseURL:  "https://api.coingecko.com/api/v3",
			Interval: time.Minute,
			Timeout:  5 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "earnx.ledger",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file and the
// environment (a .env file in the working directory is honoured).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("EARNX_PORT", &cfg.Server.Port)
	setString("EARNX_ENV", &cfg.Server.Env)
	setString("DATABASE_DRIVER", &cfg.Database.Driver)
	setString("DATABASE_DSN", &cfg.Database.DSN)
	setString("JWT_ACCESS_SECRET", &cfg.JWT.AccessSecret)
	setString("JWT_REFRESH_SECRET", &cfg.JWT.RefreshSecret)
	setString("GOOGLE_CLIENT_ID", &cfg.OAuth.GoogleClientID)
	setString("GOOGLE_CLIENT_SECRET", &cfg.OAuth.GoogleClientSecret)
	setString("GOOGLE_REDIRECT_URL", &cfg.OAuth.GoogleRedirectURL)
	setString("ADMIN_EMAIL", &cfg.Admin.Email)
	setString("ADMIN_PASSWORD", &cfg.Admin.Password)
	setString("KAFKA_TOPIC", &cfg.Kafka.Topic)
	setString("PRICE_FEED_URL", &cfg.PriceFeed.BaseURL)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	if v := os.Getenv("REWARD_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: REWARD_COOLDOWN: %w", err)
		}
		cfg.Ledger.RewardCooldown = d
	}
	if v := os.Getenv("MIN_WITHDRAWAL"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("config: MIN_WITHDRAWAL: %w", err)
		}
		cfg.Ledger.MinWithdrawal = d
	}
	if v := os.Getenv("PRICE_FEED_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: PRICE_FEED_ENABLED: %w", err)
		}
		cfg.PriceFeed.Enabled = b
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("config: jwt secrets are required")
	}
	if c.Ledger.WithdrawalFeePercent.IsNegative() || c.Ledger.WithdrawalFeePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("config: withdrawal fee percent %s out of range", c.Ledger.WithdrawalFeePercent)
	}
	if !c.Ledger.RewardAmount.IsPositive() || !c.Ledger.AdRewardAmount.IsPositive() {
		return errors.New("config: reward amounts must be positive")
	}
	if !c.Ledger.TaskUserSharePercent.IsPositive() || c.Ledger.TaskUserSharePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("config: task user share percent %s out of range", c.Ledger.TaskUserSharePercent)
	}
	if c.Ledger.ReferralAdsNeeded < 0 || c.Ledger.ReferralTasksNeeded < 0 {
		return errors.New("config: referral targets must not be negative")
	}
	if c.Ledger.MaxConflictRetries < 1 {
		return errors.New("config: max_conflict_retries must be at least 1")
	}
	return nil
}
