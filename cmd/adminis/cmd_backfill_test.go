package main

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/adminis-scraper/internal/config"
)

func TestBackfillRequiresDatabase(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.LogLevel = "error"
	cfg.Accounts = []config.Account{{Name: config.DefaultAccountName, Username: "user@example.com", Password: "secret"}}

	cmd := backfillCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.EqualError(t, err, "--postgres-dsn is required")
}
