// Package config reads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the service. Defaults match the Lagos
// deployment: UTC+1 business time, 16:00 order cutoff, 7.5% VAT.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS" envDefault:"localhost:8080"`
	DatabaseURI string `env:"DATABASE_URI"`
	JWTSecret   string `env:"JWT_SECRET" envDefault:"dev-secret-change-in-production"`

	// Business-local time. Offset is hours east of UTC.
	UTCOffsetHours int `env:"BUSINESS_UTC_OFFSET" envDefault:"1"`
	CutoffHour     int `env:"ORDER_CUTOFF_HOUR" envDefault:"16"`
	CutoffMinute   int `env:"ORDER_CUTOFF_MINUTE" envDefault:"0"`

	// Autonomous progression grace intervals, in minutes.
	PreparingGraceMin int `env:"PREPARING_GRACE_MINUTES" envDefault:"30"`
	DispatchGraceMin  int `env:"DISPATCH_GRACE_MINUTES" envDefault:"15"`
	DeliveredGraceMin int `env:"DELIVERED_GRACE_MINUTES" envDefault:"30"`

	// Payment provider.
	PaystackBaseURL       string `env:"PAYSTACK_BASE_URL" envDefault:"https://api.paystack.co"`
	PaystackSecretKey     string `env:"PAYSTACK_SECRET_KEY"`
	PaystackWebhookSecret string `env:"PAYSTACK_WEBHOOK_SECRET"`
	FrontendURL           string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	// PaymentStrictAmount makes an amount mismatch fail reconciliation
	// instead of applying the payment and logging the anomaly.
	PaymentStrictAmount bool `env:"PAYMENT_STRICT_AMOUNT" envDefault:"false"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.CutoffHour < 0 || cfg.CutoffHour > 23 {
		return nil, fmt.Errorf("ORDER_CUTOFF_HOUR out of range: %d", cfg.CutoffHour)
	}
	if cfg.CutoffMinute < 0 || cfg.CutoffMinute > 59 {
		return nil, fmt.Errorf("ORDER_CUTOFF_MINUTE out of range: %d", cfg.CutoffMinute)
	}
	return cfg, nil
}
