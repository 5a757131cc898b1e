// Package config provides configuration structures and loading for the Adminis scraper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAccountName is the name of the account configured through
// ADMINIS_USERNAME and ADMINIS_PASSWORD.
const DefaultAccountName = "default"

// Account holds the portal credentials of one account.
type Account struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config holds all configuration for the Adminis scraper.
type Config struct {
	// Portal accounts to poll
	Accounts []Account `yaml:"accounts"`
	// Portal base URL
	BaseURL string `yaml:"base_url"`
	// Time between two polls
	ScanInterval time.Duration `yaml:"scan_interval"`
	// Timeout of a single portal request
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// PostgreSQL connection string, empty disables persistence
	PostgresDSN string `yaml:"postgres_dsn"`
	// Log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
	// Log format (json, console)
	LogFormat string `yaml:"log_format"`
	// HTTP server address
	HTTPAddr string `yaml:"http_addr"`
	// Store raw payment records in database
	StoreRawResponse bool `yaml:"store_raw_response"`
	// Path of the YAML file the configuration was read from
	ConfigFile string `yaml:"-"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://adminislocuinte.ro",
		ScanInterval:     time.Hour,
		RequestTimeout:   30 * time.Second,
		PostgresDSN:      "",
		LogLevel:         "info",
		LogFormat:        "json",
		HTTPAddr:         ":8080",
		StoreRawResponse: true,
	}
}

// Load returns the default configuration overlaid with the YAML file named
// by CONFIG_FILE, if any, and then with environment variables.
func Load() (*Config, error) {
	c := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	c.LoadFromEnv()
	return c, nil
}

// LoadFile overlays the configuration with a YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("decoding config file %s: %w", path, err)
	}
	c.ConfigFile = path
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Values that cannot be parsed are ignored.
func (c *Config) LoadFromEnv() {
	username := os.Getenv("ADMINIS_USERNAME")
	password := os.Getenv("ADMINIS_PASSWORD")
	if username != "" || password != "" {
		c.SetDefaultAccount(username, password)
	}
	if v := os.Getenv("ADMINIS_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.ScanInterval = d
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.RequestTimeout = d
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("STORE_RAW_RESPONSE"); v != "" {
		c.StoreRawResponse = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
}

// SetDefaultAccount sets the credentials of the default account.
// Empty values keep the current ones.
func (c *Config) SetDefaultAccount(username, password string) {
	for i := range c.Accounts {
		if c.Accounts[i].Name != DefaultAccountName {
			continue
		}
		if username != "" {
			c.Accounts[i].Username = username
		}
		if password != "" {
			c.Accounts[i].Password = password
		}
		return
	}
	c.Accounts = append(c.Accounts, Account{
		Name:     DefaultAccountName,
		Username: username,
		Password: password,
	})
}

// Validate checks that the configuration can be used to poll the portal.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return errors.New("no account configured: set ADMINIS_USERNAME and ADMINIS_PASSWORD or list accounts in CONFIG_FILE")
	}

	var errs []error
	seen := make(map[string]bool, len(c.Accounts))
	for i, acc := range c.Accounts {
		if acc.Name == "" {
			errs = append(errs, fmt.Errorf("account %d: name is required", i))
			continue
		}
		if seen[acc.Name] {
			errs = append(errs, fmt.Errorf("account %s: duplicate name", acc.Name))
		}
		seen[acc.Name] = true
		if acc.Username == "" {
			errs = append(errs, fmt.Errorf("account %s: username is required", acc.Name))
		}
		if acc.Password == "" {
			errs = append(errs, fmt.Errorf("account %s: password is required", acc.Name))
		}
	}
	if c.ScanInterval <= 0 {
		errs = append(errs, errors.New("scan interval must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Account returns the account with the given name.
func (c *Config) Account(name string) (Account, bool) {
	for _, acc := range c.Accounts {
		if acc.Name == name {
			return acc, true
		}
	}
	return Account{}, false
}
