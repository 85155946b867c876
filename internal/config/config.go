// Package config содержит логику чтения конфигурации сервиса каршеринга.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса каршеринга.
type Config struct {
	RunAddress            string        `env:"RUN_ADDRESS"`
	DatabaseURI           string        `env:"DATABASE_URI"`
	BaseURL               string        `env:"BASE_URL"`
	StripeAPIAddress      string        `env:"STRIPE_API_ADDRESS"`
	StripeSecretKey       string        `env:"STRIPE_SECRET_KEY"`
	TelegramBotToken      string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID        string        `env:"TELEGRAM_CHAT_ID"`
	AuthSecret            string        `env:"AUTH_SECRET"`
	OverdueScanInterval   time.Duration `env:"OVERDUE_SCAN_INTERVAL"`
	PaymentExpiryInterval time.Duration `env:"PAYMENT_EXPIRY_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envBaseURL := cfg.BaseURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.BaseURL, "b", "http://localhost:8080", "public base URL for payment callbacks")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envBaseURL != "" {
		cfg.BaseURL = envBaseURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.StripeAPIAddress == "" {
		cfg.StripeAPIAddress = "https://api.stripe.com"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "carsharing-secret"
	}
	if cfg.OverdueScanInterval <= 0 {
		cfg.OverdueScanInterval = 24 * time.Hour
	}
	if cfg.PaymentExpiryInterval <= 0 {
		cfg.PaymentExpiryInterval = time.Minute
	}

	return cfg, nil
}
