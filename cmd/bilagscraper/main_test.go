package main

import (
	"errors"
	"testing"
	"time"

	"bilagscraper/pkg/config"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"fatal", errors.New("login timed out"), 1},
		{"failed items", &exitError{code: 2, err: errors.New("1 receipts failed")}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScrapeFlagsOnlyChanged(t *testing.T) {
	fs := pflag.NewFlagSet("scrape", pflag.ContinueOnError)
	addScrapeFlags(fs)
	t.Cleanup(func() { noManifest = false })

	require.NoError(t, fs.Parse([]string{"--concurrency", "3", "--timeout", "5s", "--headless=false", "--no-manifest"}))
	flags := scrapeFlags(fs)

	assert.Equal(t, 3, flags["concurrency"])
	assert.Equal(t, 5*time.Second, flags["timeout"])
	assert.Equal(t, false, flags["headless"])
	assert.Equal(t, false, flags["manifest"])
	assert.NotContains(t, flags, "output")
	assert.NotContains(t, flags, "max-attempts")

	cfg := config.DefaultConfig()
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, 3, cfg.Download.Concurrency)
	assert.False(t, cfg.Browser.Headless)
	assert.False(t, cfg.Output.ManifestEnabled)
	assert.Equal(t, "bilag", cfg.Download.Directory)
}

func TestResolveAccountPrefersExplicitCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Credentials.Email = "user@example.com"
	cfg.Credentials.Password = "hunter2"

	account, err := resolveAccount(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", account.Email)
	assert.Equal(t, "hunter2", account.Password)
}
