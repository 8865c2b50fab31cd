package config

import "time"

// DefaultVendors is the vendor keyword list used when the defaults file does
// not provide one.
var DefaultVendors = []string{"VMware", "Arcserve", "Sophos", "Microsoft", "Lenovo"}

// Config represents the complete application configuration
type Config struct {
	DefaultsPath  string
	Vendors       []string
	Feed          FeedConfig
	Advisory      AdvisoryConfig
	Notifier      NotifierConfig
	Filter        FilterConfig
	Watcher       WatcherConfig
	StateStore    StateStoreConfig
	API           APIConfig
	Observability ObservabilityConfig
}

// FeedConfig configures the CVE feed client
type FeedConfig struct {
	BaseURL        string
	APIKey         string
	ResultsPerPage int
	Timeout        time.Duration
}

// AdvisoryConfig configures the advisory page scraper
type AdvisoryConfig struct {
	PageURL string
	Timeout time.Duration
}

// NotifierConfig selects and configures the chat channel
type NotifierConfig struct {
	Type             string // telegram or slack
	TelegramAPIURL   string
	TelegramBotToken string
	TelegramChatID   string
	SlackBotToken    string
	SlackChannel     string
	Timeout          time.Duration
}

// FilterConfig configures the notability rule
type FilterConfig struct {
	Expression string
	MaxAgeDays int
}

// WatcherConfig configures the polling loop
type WatcherConfig struct {
	PollInterval time.Duration
}

// StateStoreConfig configures where the seen sets are persisted
type StateStoreConfig struct {
	Dir string
}

// APIConfig configures the HTTP API server
type APIConfig struct {
	Enabled  bool
	Port     int
	APIKey   string
	ReadOnly bool
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	LogLevel        string
	LogDir          string
	LogMaxSizeMB    int
	LogMaxBackups   int
	MetricsPort     int
	HealthCheckPort int
}

// DefaultsFile is the optional cvealert.yml document
type DefaultsFile struct {
	Defaults Defaults `yaml:"defaults"`
}

// Defaults contains default configuration values
type Defaults struct {
	Vendors      []string `yaml:"x-vendors,omitempty"`
	PollInterval string   `yaml:"x-poll-interval,omitempty"`
	MaxAgeDays   int      `yaml:"x-max-age-days,omitempty"`
	Filter       string   `yaml:"x-filter,omitempty"`
}
