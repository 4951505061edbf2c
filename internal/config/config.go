package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server
	APIPort int

	// Microsoft provider (OAuth app registration)
	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftRedirectURI  string

	// Summarization model
	GroqAPIKey string
	GroqModel  string
	GroqRPM    int
	GroqTPM    int

	// Digest delivery
	PostmarkServerToken string
	PostmarkTemplateID  int
	DigestFromAddress   string

	// Pipeline
	WorkerCount      int
	QueueCapacity    int
	FetchInterval    time.Duration
	DispatchInterval time.Duration
	PromotionsCap    int

	// Logging
	LogLevel string
	AppEnv   string
}

// Load reads configuration from the environment, pulling in a local .env
// file first when one exists
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	var err error
	if cfg.APIPort, err = intEnv("API_PORT", 8080); err != nil {
		return nil, err
	}

	cfg.MicrosoftClientID = os.Getenv("MS_CLIENT_ID")
	cfg.MicrosoftClientSecret = os.Getenv("MS_CLIENT_SECRET")
	cfg.MicrosoftRedirectURI = os.Getenv("MS_REDIRECT_URI")

	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	cfg.GroqModel = stringEnv("GROQ_MODEL", "llama-3.1-8b-instant")
	if cfg.GroqRPM, err = intEnv("GROQ_RPM", 30); err != nil {
		return nil, err
	}
	if cfg.GroqTPM, err = intEnv("GROQ_TPM", 6000); err != nil {
		return nil, err
	}

	cfg.PostmarkServerToken = os.Getenv("POSTMARK_SERVER_TOKEN")
	if cfg.PostmarkTemplateID, err = intEnv("POSTMARK_TEMPLATE_ID", 0); err != nil {
		return nil, err
	}
	cfg.DigestFromAddress = os.Getenv("DIGEST_FROM_ADDRESS")

	if cfg.WorkerCount, err = intEnv("WORKER_COUNT", 5); err != nil {
		return nil, err
	}
	if cfg.QueueCapacity, err = intEnv("QUEUE_CAPACITY", 10000); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = durationEnv("FETCH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DispatchInterval, err = durationEnv("DISPATCH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PromotionsCap, err = intEnv("PROMOTIONS_CAP", 2); err != nil {
		return nil, err
	}

	cfg.LogLevel = stringEnv("LOG_LEVEL", "info")
	cfg.AppEnv = stringEnv("APP_ENV", "development")

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WorkerCount must be positive")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("QueueCapacity must be positive")
	}
	if c.GroqRPM <= 0 || c.GroqTPM <= 0 {
		return fmt.Errorf("GroqRPM and GroqTPM must be positive")
	}
	if c.FetchInterval <= 0 || c.DispatchInterval <= 0 {
		return fmt.Errorf("FetchInterval and DispatchInterval must be positive")
	}
	if c.PromotionsCap < 1 {
		return fmt.Errorf("PromotionsCap must be at least 1")
	}
	if c.AppEnv == "production" {
		if c.MicrosoftClientID == "" || c.MicrosoftClientSecret == "" || c.MicrosoftRedirectURI == "" {
			return fmt.Errorf("Microsoft OAuth configuration is required in production")
		}
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required in production")
		}
		if c.PostmarkServerToken == "" || c.PostmarkTemplateID == 0 || c.DigestFromAddress == "" {
			return fmt.Errorf("Postmark configuration is required in production")
		}
	}
	return nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return d, nil
}
