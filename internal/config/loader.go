package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/daimoniac/cvealert/internal/errors"
)

// Load loads configuration from environment variables and cvealert.yml defaults
func Load() (*Config, error) {
	defaultsPath := getEnv("CVEALERT_CONFIG", "cvealert.yml")

	var vendors []string
	var pollInterval time.Duration
	var maxAgeDays int
	var filterExpr string

	// The defaults file is optional
	if defaults, err := ParseDefaults(defaultsPath); err == nil {
		vendors = defaults.GetVendors()
		if interval, err := defaults.GetPollInterval(); err == nil {
			pollInterval = interval
		}
		maxAgeDays = defaults.Defaults.MaxAgeDays
		filterExpr = defaults.Defaults.Filter
	} else if errors.IsPermanent(err) {
		return nil, err
	}

	if envVendors := getEnvList("VENDORS"); len(envVendors) > 0 {
		vendors = envVendors
	}
	if len(vendors) == 0 {
		vendors = append([]string(nil), DefaultVendors...)
	}
	if pollInterval == 0 {
		pollInterval = time.Hour
	}
	pollInterval = getEnvInterval("POLL_INTERVAL", pollInterval)
	if maxAgeDays == 0 {
		maxAgeDays = 15
	}

	cfg := &Config{
		DefaultsPath: defaultsPath,
		Vendors:      vendors,
		Feed: FeedConfig{
			BaseURL:        getEnv("NVD_API_URL", "https://services.nvd.nist.gov/rest/json/cves/1.0"),
			APIKey:         getEnv("NVD_API_KEY", ""),
			ResultsPerPage: getEnvInt("NVD_RESULTS_PER_PAGE", 2000),
			Timeout:        getEnvDuration("FETCH_TIMEOUT", 60*time.Second),
		},
		Advisory: AdvisoryConfig{
			PageURL: getEnv("ADVISORY_URL", "https://www.gov.br/ctir/pt-br/assuntos/alertas-e-recomendacoes/recomendacoes/2023"),
			Timeout: getEnvDuration("FETCH_TIMEOUT", 60*time.Second),
		},
		Notifier: NotifierConfig{
			Type:             strings.ToLower(getEnv("NOTIFIER_TYPE", "telegram")),
			TelegramAPIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
			SlackBotToken:    getEnv("SLACK_BOT_TOKEN", ""),
			SlackChannel:     getEnv("SLACK_CHANNEL", ""),
			Timeout:          getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Filter: FilterConfig{
			Expression: getEnv("FILTER_EXPRESSION", filterExpr),
			MaxAgeDays: getEnvInt("MAX_AGE_DAYS", maxAgeDays),
		},
		Watcher: WatcherConfig{
			PollInterval: pollInterval,
		},
		StateStore: StateStoreConfig{
			Dir: getEnv("STATE_DIR", "./json_data"),
		},
		API: APIConfig{
			Enabled:  getEnvBool("API_ENABLED", true),
			Port:     getEnvInt("API_PORT", 8080),
			APIKey:   getEnv("API_KEY", ""),
			ReadOnly: getEnvBool("API_READ_ONLY", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			LogDir:          getEnvAllowEmpty("LOG_DIR", "logs"),
			LogMaxSizeMB:    getEnvInt("LOG_MAX_SIZE_MB", 10),
			LogMaxBackups:   getEnvInt("LOG_MAX_BACKUPS", 5),
			MetricsPort:     getEnvInt("METRICS_PORT", 9090),
			HealthCheckPort: getEnvInt("HEALTH_CHECK_PORT", 8081),
		},
	}

	return cfg, nil
}

// Validate validates the configuration. Missing credentials are not an error:
// calls proceed and fail remotely. See MissingCredentials.
func (c *Config) Validate() error {
	if len(c.Vendors) == 0 {
		return errors.NewPermanentf("at least one vendor is required")
	}

	if c.Watcher.PollInterval <= 0 {
		return errors.NewPermanentf("poll interval must be positive, got %s", c.Watcher.PollInterval)
	}

	if c.Filter.MaxAgeDays <= 0 {
		return errors.NewPermanentf("MAX_AGE_DAYS must be positive, got %d", c.Filter.MaxAgeDays)
	}

	if c.Feed.BaseURL == "" {
		return errors.NewPermanentf("NVD_API_URL is required")
	}

	if c.Feed.ResultsPerPage <= 0 {
		return errors.NewPermanentf("NVD_RESULTS_PER_PAGE must be positive, got %d", c.Feed.ResultsPerPage)
	}

	if c.Advisory.PageURL == "" {
		return errors.NewPermanentf("ADVISORY_URL is required")
	}

	if c.Notifier.Type != "telegram" && c.Notifier.Type != "slack" {
		return errors.NewPermanentf("invalid notifier type: %s (must be telegram or slack)", c.Notifier.Type)
	}

	if c.StateStore.Dir == "" {
		return errors.NewPermanentf("STATE_DIR is required")
	}

	return nil
}

// MissingCredentials lists credential variables that are unset for the
// selected notifier and the feed. Callers log them as warnings.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Feed.APIKey == "" {
		missing = append(missing, "NVD_API_KEY")
	}
	switch c.Notifier.Type {
	case "telegram":
		if c.Notifier.TelegramBotToken == "" {
			missing = append(missing, "TELEGRAM_BOT_TOKEN")
		}
		if c.Notifier.TelegramChatID == "" {
			missing = append(missing, "TELEGRAM_CHAT_ID")
		}
	case "slack":
		if c.Notifier.SlackBotToken == "" {
			missing = append(missing, "SLACK_BOT_TOKEN")
		}
		if c.Notifier.SlackChannel == "" {
			missing = append(missing, "SLACK_CHANNEL")
		}
	}
	return missing
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an explicitly empty variable from an unset one
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvInterval accepts both Go durations ("90m") and interval notation ("1d")
func getEnvInterval(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if duration, err := parseInterval(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	return normalizeVendors(strings.Split(value, ","))
}
