package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

// NewPublishCommand constructs the `publish` command, which posts a
// broadcast to a gateway's HTTP endpoint.
func NewPublishCommand(apiKey APIKeyFunc) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Broadcast a message to a channel via a gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gatewayURL, _ := cmd.Flags().GetString("gateway")
			channel, _ := cmd.Flags().GetString("channel")
			message, _ := cmd.Flags().GetString("message")
			if channel == "" || message == "" {
				return fmt.Errorf("channel and message are required")
			}

			body, _ := json.Marshal(map[string]string{
				"channel": channel,
				"message": message,
				"apiKey":  apiKey(),
			})
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, gatewayURL+"/broadcast", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			out, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode >= 300 {
				return fmt.Errorf("gateway error: %s: %s", resp.Status, bytes.TrimSpace(out))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(bytes.TrimSpace(out)))
			return nil
		},
	}
	publishCmd.Flags().String("gateway", "http://127.0.0.1:8080", "Gateway base URL")
	publishCmd.Flags().String("channel", "", "Channel name")
	publishCmd.Flags().String("message", "", "Message text")
	return publishCmd
}
