// Package config содержит логику чтения конфигурации сервиса магазина.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress      = "localhost:8080"
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 14 * 24 * time.Hour
	defaultPaymentTimeout  = 10 * time.Second
	defaultKafkaTopic      = "shop.orders"
)

// Config содержит параметры конфигурации сервиса магазина.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	AppEnv      string `env:"APP_ENV"`

	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL"`
	CookieSecure    bool          `env:"COOKIE_SECURE"`

	PaymentGatewayURL string        `env:"PAYMENT_GATEWAY_URL"`
	PaymentAPISecret  string        `env:"PAYMENT_API_SECRET"`
	PaymentTimeout    time.Duration `env:"PAYMENT_TIMEOUT"`

	RedisAddress string   `env:"REDIS_ADDRESS"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"`
}

// IsProduction сообщает, запущен ли сервис в боевом окружении.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Parse считывает конфигурацию из .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg

	var kafkaBrokers string

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AppEnv, "env", "development", "application environment")
	flag.StringVar(&cfg.JWTSecret, "jwt-secret", "", "secret for signing access tokens")
	flag.DurationVar(&cfg.AccessTokenTTL, "access-ttl", defaultAccessTokenTTL, "access token lifetime")
	flag.DurationVar(&cfg.RefreshTokenTTL, "refresh-ttl", defaultRefreshTokenTTL, "refresh token lifetime")
	flag.BoolVar(&cfg.CookieSecure, "cookie-secure", false, "mark refresh cookie as Secure")
	flag.StringVar(&cfg.PaymentGatewayURL, "p", "", "payment gateway base URL")
	flag.StringVar(&cfg.PaymentAPISecret, "payment-secret", "", "payment gateway API secret")
	flag.DurationVar(&cfg.PaymentTimeout, "payment-timeout", defaultPaymentTimeout, "payment gateway request timeout")
	flag.StringVar(&cfg.RedisAddress, "redis", "", "redis address for idempotency keys")
	flag.StringVar(&kafkaBrokers, "kafka", "", "comma separated kafka brokers")
	flag.StringVar(&cfg.KafkaTopic, "kafka-topic", defaultKafkaTopic, "kafka topic for order events")

	flag.Parse()

	if kafkaBrokers != "" {
		cfg.KafkaBrokers = splitList(kafkaBrokers)
	}

	overrideString(&cfg.RunAddress, envCfg.RunAddress)
	overrideString(&cfg.DatabaseURI, envCfg.DatabaseURI)
	overrideString(&cfg.AppEnv, envCfg.AppEnv)
	overrideString(&cfg.JWTSecret, envCfg.JWTSecret)
	overrideString(&cfg.PaymentGatewayURL, envCfg.PaymentGatewayURL)
	overrideString(&cfg.PaymentAPISecret, envCfg.PaymentAPISecret)
	overrideString(&cfg.RedisAddress, envCfg.RedisAddress)
	overrideString(&cfg.KafkaTopic, envCfg.KafkaTopic)
	overrideDuration(&cfg.AccessTokenTTL, envCfg.AccessTokenTTL)
	overrideDuration(&cfg.RefreshTokenTTL, envCfg.RefreshTokenTTL)
	overrideDuration(&cfg.PaymentTimeout, envCfg.PaymentTimeout)
	if envCfg.CookieSecure {
		cfg.CookieSecure = true
	}
	if len(envCfg.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = envCfg.KafkaBrokers
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = defaultKafkaTopic
	}

	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	return cfg, nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overrideDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func splitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			res = append(res, p)
		}
	}
	return res
}
