// Package config provides loading and environment overlay for gateway and
// registry configuration. It exposes a Default() baseline, a JSON file
// loader, and a DWS_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/dws.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.ValidateGateway(); err != nil {
//	    // fatal: gateway cannot start without registry URL and API key
//	}
package config
