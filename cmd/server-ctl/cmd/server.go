package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-local-server/internal/coordinator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverRequest(cmd, http.MethodGet, "/api/server")
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the listener",
	Long: `Ask the coordinator to start the listener. Failures are reported to the
attached view; the printed state shows whether the listener is running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverRequest(cmd, http.MethodPost, "/api/server/start")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the listener",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverRequest(cmd, http.MethodPost, "/api/server/stop")
	},
}

func serverRequest(cmd *cobra.Command, method, path string) error {
	client := NewClient(controlURL, token)
	data, err := client.Request(method, path, nil)
	if err != nil {
		return err
	}
	return printStatus(cmd.OutOrStdout(), data)
}

func printStatus(w io.Writer, data []byte) error {
	if output == "json" {
		return printJSON(w, data)
	}

	var st coordinator.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	state := "stopped"
	if st.Running {
		state = "running"
	}
	attached := "no"
	if st.Attached {
		attached = "yes"
	}
	network := st.NetworkAddress
	if network == "" {
		network = "-"
	}
	url := "-"
	if st.Config != nil {
		url = st.Config.URL()
	}

	printTable(w, []string{"STATE", "VIEW", "NETWORK", "URL"}, [][]string{{state, attached, network, url}})
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd, startCmd, stopCmd)
}
