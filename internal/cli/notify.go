package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newNotifyCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification permission and test messages",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification to every sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg := map[string]string{"type": "TEST_NOTIFICATION"}
			if err := root.client().do(cmd.Context(), http.MethodPost, "/messages", msg, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "test notification sent")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "permission [granted|denied|default]",
		Short:     "Show or set the notification permission",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"granted", "denied", "default"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := root.client()
			var out map[string]any
			if len(args) == 0 {
				if err := c.do(cmd.Context(), http.MethodGet, "/notifications/permission", nil, &out); err != nil {
					return err
				}
			} else {
				payload := map[string]string{"permission": args[0]}
				if err := c.do(cmd.Context(), http.MethodPost, "/notifications/permission", payload, &out); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "permission: %v\n", out["permission"])
			return nil
		},
	})
	return cmd
}

func newProxyCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy [url]",
		Short: "Show or set the vendor proxy URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := root.client()
			if len(args) == 1 {
				msg := map[string]string{"type": "SET_PROXY_URL", "proxyUrl": args[0]}
				if err := c.do(cmd.Context(), http.MethodPost, "/messages", msg, nil); err != nil {
					return err
				}
			}
			var out map[string]string
			if err := c.do(cmd.Context(), http.MethodGet, "/proxy", nil, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out["proxyUrl"])
			return nil
		},
	}
	return cmd
}
