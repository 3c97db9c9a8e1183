// Package config loads the process configuration from environment
// variables (spec.md §6's "Configuration (recognized options)"), using
// viper the same way the rest of the example corpus does: SetEnvPrefix +
// AutomaticEnv + per-key defaults, no config file.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved process configuration.
type Config struct {
	// DataPath is the storage root (RS_DATA_PATH).
	DataPath string

	// Host/Port are the HTTP bind address (RS_HOST / RS_PORT).
	Host string
	Port int

	// APIBasePath is the URL prefix the façade is rooted at
	// (RS_API_BASE_PATH).
	APIBasePath string

	// APIToken is the bootstrap bearer token. Empty disables
	// authentication entirely (RS_API_TOKEN).
	APIToken string

	// CertPath/CertKeyPath are optional TLS material (RS_CERT_PATH /
	// RS_CERT_KEY_PATH). Both empty means plain HTTP.
	CertPath    string
	CertKeyPath string

	// LogLevel is one of TRACE, DEBUG, INFO, WARN, ERROR
	// (RS_LOG_LEVEL).
	LogLevel string

	// MaxConcurrentRequests bounds the number of in-flight façade
	// requests (RS_MAX_CONCURRENT_REQUESTS). 0 means unbounded.
	// Defaults to GOMAXPROCS*4.
	MaxConcurrentRequests int64

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight requests to drain (RS_SHUTDOWN_TIMEOUT).
	ShutdownTimeout time.Duration
}

var logLevels = map[string]bool{
	"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true,
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_path", "/data")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("api_base_path", "")
	v.SetDefault("api_token", "")
	v.SetDefault("cert_path", "")
	v.SetDefault("cert_key_path", "")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("max_concurrent_requests", int64(4*runtime.GOMAXPROCS(0)))
	v.SetDefault("shutdown_timeout", 10*time.Second)

	cfg := &Config{
		DataPath:              v.GetString("data_path"),
		Host:                  v.GetString("host"),
		Port:                  v.GetInt("port"),
		APIBasePath:           v.GetString("api_base_path"),
		APIToken:              v.GetString("api_token"),
		CertPath:              v.GetString("cert_path"),
		CertKeyPath:           v.GetString("cert_key_path"),
		LogLevel:              strings.ToUpper(v.GetString("log_level")),
		MaxConcurrentRequests: v.GetInt64("max_concurrent_requests"),
		ShutdownTimeout:       v.GetDuration("shutdown_timeout"),
	}

	if !logLevels[cfg.LogLevel] {
		return nil, fmt.Errorf("RS_LOG_LEVEL: invalid level %q, must be one of TRACE, DEBUG, INFO, WARN, ERROR", cfg.LogLevel)
	}
	if (cfg.CertPath == "") != (cfg.CertKeyPath == "") {
		return nil, fmt.Errorf("RS_CERT_PATH and RS_CERT_KEY_PATH must be set together")
	}

	return cfg, nil
}

// TLSEnabled reports whether the config carries TLS material.
func (c *Config) TLSEnabled() bool {
	return c.CertPath != "" && c.CertKeyPath != ""
}

// Addr returns the host:port string to bind the HTTP listener to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
