package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Push network changes",
	Long:  `Commands for reporting network changes to a server running with network.source=push.`,
}

var networkConnectCmd = &cobra.Command{
	Use:   "connect [address]",
	Short: "Report a network with the given address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(controlURL, token)
		data, err := client.Request(http.MethodPost, "/api/network/connected", map[string]string{"address": args[0]})
		if err != nil {
			return err
		}
		return printStatus(cmd.OutOrStdout(), data)
	},
}

var networkDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Report loss of the network",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(controlURL, token)
		data, err := client.Request(http.MethodPost, "/api/network/disconnected", nil)
		if err != nil {
			return err
		}
		return printStatus(cmd.OutOrStdout(), data)
	},
}

func init() {
	networkCmd.AddCommand(networkConnectCmd, networkDisconnectCmd)
	rootCmd.AddCommand(networkCmd)
}
