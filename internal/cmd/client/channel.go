package client

import (
	"encoding/json"
	"fmt"

	regclient "github.com/ersinkoc/DistributedWebSocket/internal/registry/client"
	"github.com/spf13/cobra"
)

// NewChannelCommand constructs the `channel` command group and subcommands.
func NewChannelCommand(registryURL BaseURLFunc, apiKey APIKeyFunc) *cobra.Command {
	channelCmd := &cobra.Command{Use: "channel", Short: "Channel ACL operations"}
	channelCmd.AddCommand(
		newChannelUpsertCommand(registryURL, apiKey),
		newChannelListCommand(registryURL, apiKey),
	)
	return channelCmd
}

// newChannelUpsertCommand constructs the `channel upsert` subcommand.
func newChannelUpsertCommand(registryURL BaseURLFunc, apiKey APIKeyFunc) *cobra.Command {
	upsertCmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or replace a channel's allowed-node list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			allow, _ := cmd.Flags().GetStringSlice("allow")
			if name == "" {
				return fmt.Errorf("channel name is required")
			}
			if len(allow) == 0 {
				return fmt.Errorf("at least one --allow entry is required (use \"*\" for all nodes)")
			}
			rc := regclient.New(registryURL(), apiKey())
			if err := rc.UpsertChannel(cmd.Context(), name, allow); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	upsertCmd.Flags().String("name", "", "Channel name")
	upsertCmd.Flags().StringSlice("allow", nil, "Allowed node id (repeat, or \"*\" for all)")
	return upsertCmd
}

// newChannelListCommand constructs the `channel list` subcommand.
func newChannelListCommand(registryURL BaseURLFunc, apiKey APIKeyFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List channels a node is permitted to serve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			nodeID, _ := cmd.Flags().GetString("node")
			if nodeID == "" {
				return fmt.Errorf("node id is required")
			}
			rc := regclient.New(registryURL(), apiKey())
			channels, err := rc.Channels(cmd.Context(), nodeID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(channels)
		},
	}
	listCmd.Flags().String("node", "", "Node id")
	return listCmd
}
