package cli

import (
	"os"

	"github.com/gatherly/gatherly-go/pkg/apix"
)

// Config carries everything the CLI needs to wire up the SDK.
type Config struct {
	API apix.Config

	StoreDir     string // Optional: token store directory (default: XDG state dir)
	StoreSecret  string // Optional: secret sealing the file token store
	PreferSQLite bool   // Optional: use the SQLite token store

	Env       string // Environment (dev, prod) (default: prod)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: text)
}

// LoadConfig reads CLI configuration from the environment. The API block
// comes from apix.LoadConfig so SDK and CLI agree on variable names.
func LoadConfig() Config {
	return Config{
		API:          apix.LoadConfig(),
		StoreDir:     os.Getenv("GATHERLY_STORE_DIR"),
		StoreSecret:  os.Getenv("GATHERLY_STORE_SECRET"),
		PreferSQLite: os.Getenv("GATHERLY_STORE_BACKEND") == "sqlite",
		Env:          getEnvOrDefault("ENV", "prod"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:    getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
