// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// zeroAddress is the placeholder platform wallet; it must be replaced outside development.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBReadHost     string `mapstructure:"DB_READ_HOST"`
	DBReadPort     string `mapstructure:"DB_READ_PORT"`
	DBReadUser     string `mapstructure:"DB_READ_USER"`
	DBReadPassword string `mapstructure:"DB_READ_PASSWORD"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	Env            string `mapstructure:"APP_ENV"`

	// Chain access and the job posting fee.
	ChainRPCURL            string `mapstructure:"CHAIN_RPC_URL"`
	ChainID                int64  `mapstructure:"CHAIN_ID"`
	PlatformWallet         string `mapstructure:"PLATFORM_WALLET"`
	JobPostFeeETH          string `mapstructure:"JOB_POST_FEE_ETH"`
	RequiredConfirmations  uint64 `mapstructure:"REQUIRED_CONFIRMATIONS"`
	ExplorerTxURL          string `mapstructure:"EXPLORER_TX_URL"`
	ChainTimeoutSeconds    int    `mapstructure:"CHAIN_TIMEOUT_SECONDS"`
	PaymentReconcileSecond int    `mapstructure:"PAYMENT_RECONCILE_SECONDS"`
	PaymentPendingTTLSecs  int    `mapstructure:"PAYMENT_PENDING_TTL_SECONDS"`

	WalletNonceTTLSeconds int `mapstructure:"WALLET_NONCE_TTL_SECONDS"`

	AMQPURL         string `mapstructure:"AMQP_URL"`
	AMQPEventsQueue string `mapstructure:"AMQP_EVENTS_QUEUE"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; environment variables alone are enough.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8480")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "chainhire")
	viper.SetDefault("DB_READ_HOST", "")
	viper.SetDefault("DB_READ_PORT", "5432")
	viper.SetDefault("DB_READ_USER", "user")
	viper.SetDefault("DB_READ_PASSWORD", "password")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "wallet_login=on")
	viper.SetDefault("APP_ENV", "development")

	viper.SetDefault("CHAIN_RPC_URL", "")
	viper.SetDefault("CHAIN_ID", 1)
	viper.SetDefault("PLATFORM_WALLET", zeroAddress)
	viper.SetDefault("JOB_POST_FEE_ETH", "0.001")
	viper.SetDefault("REQUIRED_CONFIRMATIONS", 1)
	viper.SetDefault("EXPLORER_TX_URL", "https://etherscan.io/tx/")
	viper.SetDefault("CHAIN_TIMEOUT_SECONDS", 10)
	viper.SetDefault("PAYMENT_RECONCILE_SECONDS", 30)
	viper.SetDefault("PAYMENT_PENDING_TTL_SECONDS", 86400)

	viper.SetDefault("WALLET_NONCE_TTL_SECONDS", 300)

	viper.SetDefault("AMQP_URL", "")
	viper.SetDefault("AMQP_EVENTS_QUEUE", "chainhire.events")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.PlatformWallet = strings.ToLower(strings.TrimSpace(c.PlatformWallet))
	c.JobPostFeeETH = strings.TrimSpace(c.JobPostFeeETH)
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// NonceTTL is how long a wallet sign-in challenge stays valid.
func (c *Config) NonceTTL() time.Duration {
	if c.WalletNonceTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.WalletNonceTTLSeconds) * time.Second
}

// ChainTimeout bounds a single round of chain RPC calls made while serving a request.
func (c *Config) ChainTimeout() time.Duration {
	if c.ChainTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ChainTimeoutSeconds) * time.Second
}

// ReconcileInterval is the period of the pending payment sweep.
func (c *Config) ReconcileInterval() time.Duration {
	if c.PaymentReconcileSecond <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.PaymentReconcileSecond) * time.Second
}

// PendingPaymentTTL is how long a payment may stay unconfirmed before the sweep fails it.
func (c *Config) PendingPaymentTTL() time.Duration {
	if c.PaymentPendingTTLSecs <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.PaymentPendingTTLSecs) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JobPostFeeETH == "" {
		return errors.New("JOB_POST_FEE_ETH is required")
	}
	if c.ChainID <= 0 {
		return errors.New("CHAIN_ID must be positive")
	}
	if !isHexAddress(c.PlatformWallet) {
		return errors.New("PLATFORM_WALLET must be a 0x-prefixed 20-byte hex address")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		if c.PlatformWallet == zeroAddress {
			return errors.New("PLATFORM_WALLET must be set in production")
		}
		if c.ChainRPCURL == "" {
			return errors.New("CHAIN_RPC_URL is required in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

func isHexAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
