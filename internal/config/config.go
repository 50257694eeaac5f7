package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all terminal configuration
type Config struct {
	NodeEnv         string
	APIURL          string
	WebSocketURL    string
	TerminalID      string
	TaxRate         decimal.Decimal
	OfflineDBPath   string
	CredentialsPath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	taxRate, err := parseTaxRate(getEnv("TAX_RATE", "0.10"))
	if err != nil {
		return nil, err
	}

	return &Config{
		NodeEnv:         getEnv("NODE_ENV", "development"),
		APIURL:          getEnv("API_URL", "http://localhost:8000/api/v1"),
		WebSocketURL:    getEnv("WEBSOCKET_URL", "ws://localhost:8000"),
		TerminalID:      getEnv("TERMINAL_ID", "pos-terminal-1"),
		TaxRate:         taxRate,
		OfflineDBPath:   getEnv("OFFLINE_DB_PATH", "pos_offline.db"),
		CredentialsPath: getEnv("CREDENTIALS_PATH", "pos_credentials.json"),
	}, nil
}

func parseTaxRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid TAX_RATE %q: %w", raw, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("TAX_RATE %s out of range [0,1]", rate)
	}
	return rate, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
