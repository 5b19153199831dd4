package config

import (
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func TestDefaults(t *testing.T) {
	cfg, err := NewConfiguration()
	require.NoError(t, err)
	require.NoError(t, cfg.parseFlags(flag.NewFlagSet("test", flag.ContinueOnError), nil))

	assert.Equal(t, ":8080", cfg.ServerConfig.ServerAddress)
	assert.Equal(t, "", cfg.ServerConfig.PayoutAddress)
	assert.Equal(t, 4, cfg.QueueConfig.WorkerNumber)
	assert.Equal(t, 3, cfg.QueueConfig.RetryNumber)
	assert.Equal(t, 64, cfg.QueueConfig.QueueSize)
	assert.Equal(t, "jds__63h3_7ds", cfg.SecretConfig.SecretKey)
}

func TestEnvThenFlagPrecedence(t *testing.T) {
	setEnv(t, "RUN_ADDRESS", ":9090")
	setEnv(t, "PAYOUT_RAIL_ADDRESS", "http://rail:7070")
	setEnv(t, "N_WORKERS", "2")

	cfg, err := NewConfiguration()
	require.NoError(t, err)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	require.NoError(t, cfg.parseFlags(fs, []string{"-a", ":7000"}))

	assert.Equal(t, ":7000", cfg.ServerConfig.ServerAddress)
	assert.Equal(t, "http://rail:7070", cfg.ServerConfig.PayoutAddress)
	assert.Equal(t, 2, cfg.QueueConfig.WorkerNumber)
}

func TestRejectsNonPositiveWorkers(t *testing.T) {
	cfg, err := NewConfiguration()
	require.NoError(t, err)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	assert.Error(t, cfg.parseFlags(fs, []string{"-n", "0"}))
}
