package client

import (
	"encoding/json"

	regclient "github.com/ersinkoc/DistributedWebSocket/internal/registry/client"
	"github.com/spf13/cobra"
)

// BaseURLFunc provides the registry base URL (e.g., from env or flag).
type BaseURLFunc func() string

// APIKeyFunc provides the shared API key.
type APIKeyFunc func() string

// NewNodeCommand constructs the `node` command group and subcommands.
func NewNodeCommand(registryURL BaseURLFunc, apiKey APIKeyFunc) *cobra.Command {
	nodeCmd := &cobra.Command{Use: "node", Short: "Node directory operations"}
	nodeCmd.AddCommand(newNodeListCommand(registryURL, apiKey))
	return nodeCmd
}

// newNodeListCommand constructs the `node list` subcommand.
func newNodeListCommand(registryURL BaseURLFunc, apiKey APIKeyFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List nodes currently inside the liveness window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc := regclient.New(registryURL(), apiKey())
			nodes, err := rc.ActiveNodes(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		},
	}
	return listCmd
}
