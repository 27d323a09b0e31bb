package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	aws_pkg "github.com/bunzstudio/storefront-backend/pkg/aws"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	MongoURL    string
	MongoDBName string

	StripeSecretKey     string
	StripeWebhookSecret string
	// WebhookVerificationDisabled is set when no webhook secret is
	// configured. Deliveries are then parsed without signature checks; the
	// state is logged loudly at startup and on every delivery so it can
	// never be mistaken for "verified".
	WebhookVerificationDisabled bool

	ClientURL string
	Currency  string

	RedisURL string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string

	OrderSNSTopicARN string
}

func LoadConfig() (*Config, error) {
	// No .env file is fine; the system environment is used.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("APP_ENV", "development"),
		MongoURL:            os.Getenv("MONGO_URL"),
		MongoDBName:         getEnv("MONGO_DB", "storefront"),
		StripeSecretKey:     os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		ClientURL:           getEnv("CLIENT_URL", "http://localhost:3000"),
		Currency:            getEnv("CURRENCY", "myr"),
		RedisURL:            os.Getenv("REDIS_URL"),
		PostgresUser:        os.Getenv("POSTGRES_USER"),
		PostgresPassword:    os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:          os.Getenv("POSTGRES_DB"),
		PostgresHost:        getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:        getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:     getEnv("POSTGRES_SSLMODE", "disable"),
		OrderSNSTopicARN:    os.Getenv("ORDER_SNS_TOPIC_ARN"),
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			sm := aws_pkg.NewSecretsClient(awsCfg)

			if stripeJSON, err := sm.GetSecret(context.Background(), "storefront/STRIPE_KEYS"); err == nil && stripeJSON != "" {
				var m map[string]string
				if err := json.Unmarshal([]byte(stripeJSON), &m); err == nil {
					if v := m["STRIPE_API_KEY"]; v != "" {
						cfg.StripeSecretKey = v
					}
					if v := m["STRIPE_WEBHOOK_SECRET"]; v != "" {
						cfg.StripeWebhookSecret = v
					}
				}
			}
		}
	}

	if cfg.MongoURL == "" {
		return nil, fmt.Errorf("MONGO_URL is required")
	}
	if cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_API_KEY is required")
	}

	cfg.WebhookVerificationDisabled = cfg.StripeWebhookSecret == ""

	return cfg, nil
}

// PostgresDSN builds the notification-log DSN, or returns "" when Postgres
// is not configured (the delivery log is optional).
func (c *Config) PostgresDSN() string {
	if c.PostgresUser == "" || c.PostgresDB == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
