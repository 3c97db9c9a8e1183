package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsblobstore/tsblobstore/internal/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "/data", cfg.DataPath)
	require.Equal(t, "INFO", cfg.LogLevel)
	require.False(t, cfg.TLSEnabled())
	require.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("RS_DATA_PATH", "/var/lib/tsblobstore")
	t.Setenv("RS_PORT", "9999")
	t.Setenv("RS_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "/var/lib/tsblobstore", cfg.DataPath)
	require.Equal(t, 9999, cfg.Port)
	require.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("RS_LOG_LEVEL", "VERBOSE")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadRejectsMismatchedTLSMaterial(t *testing.T) {
	t.Setenv("RS_CERT_PATH", "/etc/tsblobstore/cert.pem")
	_, err := config.Load()
	require.Error(t, err)
}
