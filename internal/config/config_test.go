package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ADMINIS_USERNAME", "ADMINIS_PASSWORD", "ADMINIS_BASE_URL", "SCAN_INTERVAL",
	"REQUEST_TIMEOUT", "POSTGRES_DSN", "LOG_LEVEL", "LOG_FORMAT", "HTTP_ADDR",
	"STORE_RAW_RESPONSE", "CONFIG_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, "https://adminislocuinte.ro", c.BaseURL)
	assert.Equal(t, time.Hour, c.ScanInterval)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.Empty(t, c.Accounts)
	assert.Error(t, c.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMINIS_USERNAME", "user@example.com")
	t.Setenv("ADMINIS_PASSWORD", "secret")
	t.Setenv("SCAN_INTERVAL", "15m")
	t.Setenv("REQUEST_TIMEOUT", "not a duration")
	t.Setenv("STORE_RAW_RESPONSE", "FALSE")
	t.Setenv("LOG_FORMAT", "console")

	c := DefaultConfig()
	c.LoadFromEnv()

	assert.Equal(t, []Account{{Name: DefaultAccountName, Username: "user@example.com", Password: "secret"}}, c.Accounts)
	assert.Equal(t, 15*time.Minute, c.ScanInterval)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.False(t, c.StoreRawResponse)
	assert.Equal(t, "console", c.LogFormat)
	assert.NoError(t, c.Validate())
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
accounts:
  - name: home
    username: home@example.com
    password: one
  - name: parents
    username: parents@example.com
    password: two
scan_interval: 30m
postgres_dsn: postgres://localhost/adminis
log_level: debug
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, path, c.ConfigFile)
	require.Len(t, c.Accounts, 2)
	parents, ok := c.Account("parents")
	require.True(t, ok)
	assert.Equal(t, "parents@example.com", parents.Username)
	assert.Equal(t, 30*time.Minute, c.ScanInterval)
	assert.Equal(t, "postgres://localhost/adminis", c.PostgresDSN)
	// Environment wins over the file.
	assert.Equal(t, "warn", c.LogLevel)
	// Unset keys keep their defaults.
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.NoError(t, c.Validate())
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CONFIG_FILE", writeFile(t, "accounts: [unterminated"))
	_, err = Load()
	assert.Error(t, err)
}

func TestSetDefaultAccount(t *testing.T) {
	c := DefaultConfig()
	c.Accounts = []Account{{Name: DefaultAccountName, Username: "old@example.com", Password: "old"}}

	c.SetDefaultAccount("new@example.com", "")
	assert.Equal(t, []Account{{Name: DefaultAccountName, Username: "new@example.com", Password: "old"}}, c.Accounts)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		accounts []Account
		wantErr  string
	}{
		{name: "valid", accounts: []Account{{Name: "a", Username: "u", Password: "p"}}},
		{name: "missing password", accounts: []Account{{Name: "a", Username: "u"}}, wantErr: "account a: password is required"},
		{name: "missing name", accounts: []Account{{Username: "u", Password: "p"}}, wantErr: "account 0: name is required"},
		{name: "duplicate", accounts: []Account{{Name: "a", Username: "u", Password: "p"}, {Name: "a", Username: "v", Password: "q"}}, wantErr: "account a: duplicate name"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			c.Accounts = tc.accounts

			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
