package apix

import (
	"os"
	"strconv"
	"time"
)

// Defaults applied by Config.withDefaults. These mirror the backend's
// documented client contract.
const (
	DefaultAPIVersion     = "v1"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = 1 * time.Second
)

// Config holds the read-only inputs for a Client. The zero value is not
// usable; BaseURL is required and everything else falls back to defaults.
type Config struct {
	BaseURL    string        // Required: scheme://host[:port] of the backend
	APIVersion string        // Optional: versioned path segment (default: v1)
	Timeout    time.Duration // Optional: per-attempt timeout (default: 30s)
	MaxRetries int           // Optional: retry budget per request (default: 3)
	RetryBase  time.Duration // Optional: base backoff delay (default: 1s)

	// ClientID identifies the calling application, sent as X-Client on
	// every request.
	ClientID string

	// DefaultHeaders are merged into every request, below caller-supplied
	// headers.
	DefaultHeaders map[string]string

	// RequestsPerSecond enables a client-side throttle ahead of each network
	// attempt when > 0. Burst defaults to the same value when zero.
	RequestsPerSecond float64
	Burst             int
}

// withDefaults returns a copy of c with unset fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBaseDelay
	}
	if c.Burst <= 0 && c.RequestsPerSecond > 0 {
		c.Burst = int(c.RequestsPerSecond)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
	return c
}

// LoadConfig builds a Config from environment variables. Unset variables
// fall back to the package defaults.
func LoadConfig() Config {
	return Config{
		BaseURL:           os.Getenv("GATHERLY_BASE_URL"),
		APIVersion:        getEnvOrDefault("GATHERLY_API_VERSION", DefaultAPIVersion),
		Timeout:           getEnvDurationOrDefault("GATHERLY_TIMEOUT", DefaultTimeout),
		MaxRetries:        getEnvIntOrDefault("GATHERLY_MAX_RETRIES", DefaultMaxRetries),
		RetryBase:         getEnvDurationOrDefault("GATHERLY_RETRY_BASE_DELAY", DefaultRetryBaseDelay),
		ClientID:          getEnvOrDefault("GATHERLY_CLIENT_ID", "gatherly-go"),
		RequestsPerSecond: getEnvFloatOrDefault("GATHERLY_REQUESTS_PER_SECOND", 0),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "30s", "1m")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer milliseconds for config carried over from the
	// mobile clients, which express timeouts in ms.
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}

	return defaultValue
}
