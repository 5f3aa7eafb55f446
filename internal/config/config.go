package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Duration wraps time.Duration with JSON support for Go duration strings
// ("30s", "5m") and bare millisecond numbers.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON encodes the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "30s"-style strings or millisecond numbers.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(t) * time.Millisecond)
		return nil
	default:
		return fmt.Errorf("config: invalid duration %s", b)
	}
}

// Config is the top-level configuration loaded from file/env. A single
// struct covers both roles; each role validates only the fields it needs.
type Config struct {
	// NodeID identifies this gateway in the cluster. Generated when empty.
	NodeID string `json:"nodeId"`
	// PublicURL is the base URL other nodes and the registry use to reach
	// this gateway. Defaults to http://localhost<GatewayAddr>.
	PublicURL string `json:"publicUrl"`
	// GatewayAddr is the gateway HTTP/websocket listen address.
	GatewayAddr string `json:"gatewayAddr"`
	// RegistryAddr is the registry HTTP listen address.
	RegistryAddr string `json:"registryAddr"`
	// RegistryURL is the registry base URL as seen from a gateway.
	RegistryURL string `json:"registryUrl"`
	// APIKey is the shared secret for all cross-service calls.
	APIKey string `json:"apiKey"`
	// DataDir is the registry's storage directory.
	DataDir string `json:"dataDir"`

	// LivenessWindow bounds how stale a node's last_seen may be while the
	// node still counts as live.
	LivenessWindow Duration `json:"livenessWindow"`
	// RefreshInterval paces the gateway's announce + directory refresh loop.
	RefreshInterval Duration `json:"refreshInterval"`
	// MetricsInterval paces the gateway's metrics tick and registry push.
	MetricsInterval Duration `json:"metricsInterval"`
	// ForwardTimeout bounds each per-peer broadcast forward.
	ForwardTimeout Duration `json:"forwardTimeout"`
	// PullTimeout bounds each per-node metrics pull during cluster aggregation.
	PullTimeout Duration `json:"pullTimeout"`

	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		GatewayAddr:     ":8080",
		RegistryAddr:    ":8000",
		LivenessWindow:  Duration(5 * time.Minute),
		RefreshInterval: Duration(30 * time.Second),
		MetricsInterval: Duration(5 * time.Second),
		ForwardTimeout:  Duration(5 * time.Second),
		PullTimeout:     Duration(5 * time.Second),
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads configuration from a JSON file, overlaying defaults. If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateGateway checks the fields a gateway cannot start without.
func (c Config) ValidateGateway() error {
	if c.RegistryURL == "" {
		return errors.New("config: registryUrl is required for gateway")
	}
	if c.APIKey == "" {
		return errors.New("config: apiKey is required for gateway")
	}
	if c.GatewayAddr == "" {
		return errors.New("config: gatewayAddr is required for gateway")
	}
	return nil
}

// ValidateRegistry checks the fields the registry cannot start without.
func (c Config) ValidateRegistry() error {
	if c.APIKey == "" {
		return errors.New("config: apiKey is required for registry")
	}
	if c.RegistryAddr == "" {
		return errors.New("config: registryAddr is required for registry")
	}
	return nil
}
