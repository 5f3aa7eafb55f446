package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

// NewClusterCommand constructs the `cluster` command group.
func NewClusterCommand(registryURL BaseURLFunc, apiKey APIKeyFunc) *cobra.Command {
	clusterCmd := &cobra.Command{Use: "cluster", Short: "Cluster-wide operations"}
	clusterCmd.AddCommand(newClusterMetricsCommand(registryURL, apiKey))
	return clusterCmd
}

// newClusterMetricsCommand constructs the `cluster metrics` subcommand.
func newClusterMetricsCommand(registryURL BaseURLFunc, apiKey APIKeyFunc) *cobra.Command {
	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Aggregate live metrics across all active nodes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, registryURL()+"/cluster/metrics", nil)
			if err != nil {
				return err
			}
			req.Header.Set("X-API-Key", apiKey())
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode >= 300 {
				_, _ = io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("http error: %s", resp.Status)
			}
			var data json.RawMessage
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return err
			}
			var pretty interface{}
			if err := json.Unmarshal(data, &pretty); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pretty)
		},
	}
	return metricsCmd
}
