// Package config содержит логику чтения конфигурации сервиса магазина.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса магазина.
// Секреты платёжного провайдера задаются только через переменные окружения.
type Config struct {
	RunAddress           string `env:"RUN_ADDRESS"`
	DatabaseURI          string `env:"DATABASE_URI"`
	PaymentAddress       string `env:"PAYMENT_ADDRESS"`
	PaymentKeyID         string `env:"PAYMENT_KEY_ID"`
	PaymentKeySecret     string `env:"PAYMENT_KEY_SECRET"`
	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET"`
	AuthSecret           string `env:"AUTH_SECRET"`
	Currency             string `env:"CURRENCY"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPaymentAddress := cfg.PaymentAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaymentAddress, "p", "", "payment provider API address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPaymentAddress != "" {
		cfg.PaymentAddress = envPaymentAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}

	return cfg, nil
}
