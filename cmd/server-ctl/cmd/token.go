package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-local-server/pkg/config"
	"github.com/sirosfoundation/go-local-server/pkg/middleware"
)

var (
	tokenConfig  string
	tokenSecret  string
	tokenIssuer  string
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a control API token",
	Long: `Mint an HS256 control token signed with the server's auth secret.

With --config the secret, issuer and lifetime are read from the server's
configuration file (and LOCALSRV_* environment); explicit flags win.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, issuer, ttl := tokenSecret, tokenIssuer, tokenTTL

		if tokenConfig != "" {
			cfg, err := config.Load(tokenConfig)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("secret") {
				secret = cfg.Auth.Secret
			}
			if !flags.Changed("issuer") {
				issuer = cfg.Auth.Issuer
			}
			if !flags.Changed("ttl") {
				ttl = cfg.Auth.TokenExpiry()
			}
		}

		if secret == "" {
			return fmt.Errorf("--secret is required (or set LOCALSRV_AUTH_SECRET)")
		}
		signed, err := middleware.IssueToken(secret, issuer, tokenSubject, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenConfig, "config", "", "Server configuration file to read auth settings from")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", os.Getenv("LOCALSRV_AUTH_SECRET"), "Shared auth secret")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "local-server", "Token issuer")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "server-ctl", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
