package config

import (
	"os"
	"time"
)

// FromEnv overlays DWS_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("DWS_NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("DWS_PUBLIC_URL"); v != "" {
		cfg.PublicURL = v
	}
	if v := os.Getenv("DWS_GATEWAY_ADDR"); v != "" {
		cfg.GatewayAddr = v
	}
	if v := os.Getenv("DWS_REGISTRY_ADDR"); v != "" {
		cfg.RegistryAddr = v
	}
	if v := os.Getenv("DWS_REGISTRY_URL"); v != "" {
		cfg.RegistryURL = v
	}
	if v := os.Getenv("DWS_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("DWS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DWS_LIVENESS_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LivenessWindow = Duration(d)
		}
	}
	if v := os.Getenv("DWS_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RefreshInterval = Duration(d)
		}
	}
	if v := os.Getenv("DWS_METRICS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MetricsInterval = Duration(d)
		}
	}
	if v := os.Getenv("DWS_FORWARD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ForwardTimeout = Duration(d)
		}
	}
	if v := os.Getenv("DWS_PULL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PullTimeout = Duration(d)
		}
	}
	if v := os.Getenv("DWS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DWS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
