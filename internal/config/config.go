package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the server
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	GitHub   GitHubConfig   `toml:"github" yaml:"github"`
	Binding  BindingConfig  `toml:"binding" yaml:"binding"`
	Badge    BadgeConfig    `toml:"badge" yaml:"badge"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics" yaml:"metrics"`
	Security SecurityConfig `toml:"security" yaml:"security"`
	Proxy    ProxyConfig    `toml:"proxy" yaml:"proxy"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int    `toml:"port" yaml:"port"`
	Host         string `toml:"host" yaml:"host"`
	ReadTimeout  int    `toml:"read_timeout" yaml:"read_timeout"`   // seconds
	WriteTimeout int    `toml:"write_timeout" yaml:"write_timeout"` // seconds
	IdleTimeout  int    `toml:"idle_timeout" yaml:"idle_timeout"`   // seconds
}

// GitHubConfig holds settings for the GitHub REST API
type GitHubConfig struct {
	APIURL         string `toml:"api_url" yaml:"api_url"`
	Token          string `toml:"token" yaml:"token"`
	UserAgent      string `toml:"user_agent" yaml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRepoPages   int    `toml:"max_repo_pages" yaml:"max_repo_pages"` // 0 = unlimited
	IssueState     string `toml:"issue_state" yaml:"issue_state"`       // "open" or "all"
}

// BindingConfig holds identity binding rules
type BindingConfig struct {
	DefaultRepo        string   `toml:"default_repo" yaml:"default_repo"`
	RefererHosts       []string `toml:"referer_hosts" yaml:"referer_hosts"` // empty = any host
	RequireHandleMatch bool     `toml:"require_handle_match" yaml:"require_handle_match"`
	RequireIssueAuthor bool     `toml:"require_issue_author" yaml:"require_issue_author"`
}

// BadgeConfig holds badge rendering metadata
type BadgeConfig struct {
	Label        string `toml:"label" yaml:"label"`
	LabelColor   string `toml:"label_color" yaml:"label_color"`
	SuccessColor string `toml:"success_color" yaml:"success_color"`
	FailureColor string `toml:"failure_color" yaml:"failure_color"`
	NamedLogo    string `toml:"named_logo" yaml:"named_logo"`
	Style        string `toml:"style" yaml:"style"`
	CacheSeconds int    `toml:"cache_seconds" yaml:"cache_seconds"`
	AlwaysOK     bool   `toml:"always_ok" yaml:"always_ok"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "text" or "json"
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// SecurityConfig holds security filter settings
type SecurityConfig struct {
	FilterEnabled bool `toml:"filter_enabled" yaml:"filter_enabled"`
	MaxBodySizeKB int  `toml:"max_body_size_kb" yaml:"max_body_size_kb"`
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool     `toml:"trust_proxy" yaml:"trust_proxy"`
	TrustedProxies []string `toml:"trusted_proxies" yaml:"trusted_proxies"` // CIDR notation
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
		},
		GitHub: GitHubConfig{
			APIURL:         "https://api.github.com",
			UserAgent:      "ethbinder-badge",
			TimeoutSeconds: 5,
			MaxRepoPages:   50,
			IssueState:     "open",
		},
		Binding: BindingConfig{
			DefaultRepo:  "ethbinder",
			RefererHosts: []string{"github.com", "www.github.com"},
		},
		Badge: BadgeConfig{
			Label:        "ethbinder",
			LabelColor:   "#5177D0",
			SuccessColor: "#51D06A",
			FailureColor: "#D06A51",
			NamedLogo:    "ethereum",
			Style:        "flat",
			// shields.io ignores anything lower than 300
			CacheSeconds: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Security: SecurityConfig{
			FilterEnabled: true,
			MaxBodySizeKB: 16,
		},
		Proxy: ProxyConfig{
			TrustedProxies: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		},
	}
}

// Load loads configuration from the file named by CONFIG_FILE (if any)
// and then from environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile loads configuration from path (TOML or YAML, by extension) and
// applies environment overrides on top. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file type %q (use .toml, .yaml or .yml)", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.ReadTimeout = getEnvInt("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvInt("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvInt("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)

	cfg.GitHub.APIURL = strings.TrimRight(getEnv("GITHUB_API_URL", cfg.GitHub.APIURL), "/")
	cfg.GitHub.Token = getEnv("GITHUB_API_KEY", getEnv("GITHUB_TOKEN", cfg.GitHub.Token))
	cfg.GitHub.UserAgent = getEnv("GITHUB_USER_AGENT", cfg.GitHub.UserAgent)
	cfg.GitHub.TimeoutSeconds = getEnvInt("GITHUB_TIMEOUT_SECONDS", cfg.GitHub.TimeoutSeconds)
	cfg.GitHub.MaxRepoPages = getEnvInt("GITHUB_MAX_REPO_PAGES", cfg.GitHub.MaxRepoPages)
	cfg.GitHub.IssueState = getEnv("GITHUB_ISSUE_STATE", cfg.GitHub.IssueState)

	cfg.Binding.DefaultRepo = getEnv("DEFAULT_REPO", cfg.Binding.DefaultRepo)
	cfg.Binding.RefererHosts = getEnvStringSlice("REFERER_HOSTS", cfg.Binding.RefererHosts)
	cfg.Binding.RequireHandleMatch = getEnvBool("REQUIRE_HANDLE_MATCH", cfg.Binding.RequireHandleMatch)
	cfg.Binding.RequireIssueAuthor = getEnvBool("REQUIRE_ISSUE_AUTHOR", cfg.Binding.RequireIssueAuthor)

	cfg.Badge.Label = getEnv("BADGE_LABEL", cfg.Badge.Label)
	cfg.Badge.CacheSeconds = getEnvInt("BADGE_CACHE_SECONDS", cfg.Badge.CacheSeconds)
	cfg.Badge.AlwaysOK = getEnvBool("BADGE_ALWAYS_OK", cfg.Badge.AlwaysOK)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Path = getEnv("METRICS_PATH", cfg.Metrics.Path)

	cfg.Security.FilterEnabled = getEnvBool("SECURITY_FILTER_ENABLED", cfg.Security.FilterEnabled)
	cfg.Security.MaxBodySizeKB = getEnvInt("SECURITY_MAX_BODY_SIZE_KB", cfg.Security.MaxBodySizeKB)

	cfg.Proxy.TrustProxy = getEnvBool("TRUST_PROXY", cfg.Proxy.TrustProxy)
	cfg.Proxy.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", cfg.Proxy.TrustedProxies)
}

// Validate checks values that would otherwise fail at request time.
// A missing GitHub token is not an error here: it is reported per request.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.GitHub.APIURL == "" {
		return fmt.Errorf("github api url must not be empty")
	}
	if c.GitHub.TimeoutSeconds <= 0 {
		return fmt.Errorf("github timeout must be positive, got %d", c.GitHub.TimeoutSeconds)
	}
	if c.GitHub.MaxRepoPages < 0 {
		return fmt.Errorf("github max repo pages must not be negative, got %d", c.GitHub.MaxRepoPages)
	}
	switch c.GitHub.IssueState {
	case "open", "closed", "all":
	default:
		return fmt.Errorf("invalid github issue state %q", c.GitHub.IssueState)
	}
	if c.Binding.DefaultRepo == "" {
		return fmt.Errorf("default repo must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
