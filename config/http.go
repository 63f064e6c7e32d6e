package config

import (
	"net/http"
	"os"
	"time"
)

type HTTPConfig struct {
	Port            string        `yaml:"port"`
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Port:            "8080",
		DefaultTimeout:  30 * time.Second,
		ProviderTimeout: 30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func (cfg *HTTPConfig) applyEnv() {
	cfg.Port = getEnv("PORT", cfg.Port)

	if v := os.Getenv("HTTP_DEFAULT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DefaultTimeout = d
		}
	}

	if v := os.Getenv("HTTP_PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ProviderTimeout = d
		}
	}

	if v := os.Getenv("HTTP_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
}

// ProviderClient is the HTTP client used for external provider calls
func (cfg HTTPConfig) ProviderClient() *http.Client {
	return &http.Client{
		Timeout: cfg.ProviderTimeout,
	}
}
