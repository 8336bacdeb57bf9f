// Package cli is the stockwatch command line client for the daemon's
// control API.
package cli

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

const defaultBaseURL = "http://localhost:8080"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	API       string
	TokenPath string
	Timeout   time.Duration
	Config    string
}

func (o *RootOptions) client() *apiClient {
	return &apiClient{
		http:      &http.Client{Timeout: o.Timeout},
		base:      o.API,
		tokenPath: o.TokenPath,
	}
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "stockwatch",
		Short:         "Track grocery product availability",
		Long:          "Command line client for the stockwatch daemon: tracked products, settings, availability checks and notifications.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.API, "api", defaultBaseURL, "API base URL")
	cmd.PersistentFlags().StringVar(&opts.TokenPath, "token-file", defaultTokenPath(), "token file path")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request timeout")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "daemon config file (token sign only)")

	cmd.AddCommand(newSettingsCommand(opts))
	cmd.AddCommand(newProductsCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newAvailabilityCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newNotifyCommand(opts))
	cmd.AddCommand(newProxyCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}
