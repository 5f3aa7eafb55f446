package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientcmd "github.com/ersinkoc/DistributedWebSocket/internal/cmd/client"
	gatewayrun "github.com/ersinkoc/DistributedWebSocket/internal/cmd/gateway"
	registryrun "github.com/ersinkoc/DistributedWebSocket/internal/cmd/registry"
	cfgpkg "github.com/ersinkoc/DistributedWebSocket/internal/config"
	logpkg "github.com/ersinkoc/DistributedWebSocket/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// Respect DWS_LOG_LEVEL for CLI output as well as server start output.
	level := os.Getenv("DWS_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "dws",
		Short: "Distributed websocket fabric CLI",
		Long:  "dws runs gateway and registry nodes of a distributed websocket broadcast fabric, and manages a running cluster.",
	}

	// gateway start
	gatewayCmd := &cobra.Command{Use: "gateway", Short: "Gateway node commands"}
	gatewayStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start a gateway node (websocket + HTTP broadcast)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				cfg.GatewayAddr = v
			}
			if v, _ := cmd.Flags().GetString("node-id"); v != "" {
				cfg.NodeID = v
			}
			if v, _ := cmd.Flags().GetString("public-url"); v != "" {
				cfg.PublicURL = v
			}
			if v, _ := cmd.Flags().GetString("registry-url"); v != "" {
				cfg.RegistryURL = v
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := gatewayrun.Run(ctx, gatewayrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("gateway error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	gatewayStartCmd.Flags().String("addr", "", "Listen address (default :8080)")
	gatewayStartCmd.Flags().String("node-id", "", "Node id (generated when empty)")
	gatewayStartCmd.Flags().String("public-url", "", "Base URL peers use to reach this node")
	gatewayStartCmd.Flags().String("registry-url", "", "Registry base URL")
	gatewayCmd.AddCommand(gatewayStartCmd)
	rootCmd.AddCommand(gatewayCmd)

	// registry start
	registryCmd := &cobra.Command{Use: "registry", Short: "Registry commands"}
	registryStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the registry (directory, ACLs, metrics)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				cfg.RegistryAddr = v
			}
			if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
				cfg.DataDir = v
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := registryrun.Run(ctx, registryrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("registry error: %w", err)
			}
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	registryStartCmd.Flags().String("addr", "", "Listen address (default :8000)")
	registryStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	registryCmd.AddCommand(registryStartCmd)
	rootCmd.AddCommand(registryCmd)

	// operator commands
	rootCmd.AddCommand(clientcmd.NewNodeCommand(registryURL, apiKey))
	rootCmd.AddCommand(clientcmd.NewChannelCommand(registryURL, apiKey))
	rootCmd.AddCommand(clientcmd.NewPublishCommand(apiKey))
	rootCmd.AddCommand(clientcmd.NewClusterCommand(registryURL, apiKey))

	rootCmd.PersistentFlags().String("config", os.Getenv("DWS_CONFIG"), "Path to JSON config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration: file, then DWS_* environment
// overlays, then command flags applied by the caller.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)
	return cfg, nil
}

func registryURL() string {
	if v := os.Getenv("DWS_REGISTRY_URL"); v != "" {
		return v
	}
	return "http://127.0.0.1:8000"
}

func apiKey() string { return os.Getenv("DWS_API_KEY") }
