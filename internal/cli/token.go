package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"stockwatch/internal/auth"
	"stockwatch/internal/kvstore"
	"stockwatch/pkg/utils"
)

func newTokenCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage control API tokens",
	}

	var (
		client string
		scope  string
		save   bool
	)

	sign := &cobra.Command{
		Use:   "sign",
		Short: "Sign a token locally with the daemon's secret",
		Long: `Sign a token locally using auth.jwtSecret from the daemon config. The
current token generation is read from the daemon's store, so run this on
the daemon host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := utils.LoadConfig(root.Config)
			if err != nil {
				return err
			}
			sc, err := auth.ParseScope(scope)
			if err != nil {
				return err
			}
			store, err := kvstore.Open(cfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()
			gen, err := auth.NewGenerations(store).Current(cmd.Context())
			if err != nil {
				return err
			}
			ts := auth.TokenService{
				Secret:   []byte(cfg.Auth.JWTSecret),
				Issuer:   cfg.Auth.JWTIssuer,
				Duration: cfg.Auth.JWTDuration,
			}
			tok, exp, err := ts.Sign(client, sc, gen)
			if err != nil {
				return err
			}
			return emitToken(cmd, root, tok, exp, save)
		},
	}

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Ask the daemon for a new token (needs a control token)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Token     string    `json:"token"`
				ExpiresAt time.Time `json:"expiresAt"`
			}
			payload := map[string]string{"client": client, "scope": scope}
			if err := root.client().do(cmd.Context(), http.MethodPost, "/auth/token", payload, &resp); err != nil {
				return err
			}
			return emitToken(cmd, root, resp.Token, resp.ExpiresAt, save)
		},
	}

	for _, c := range []*cobra.Command{sign, issue} {
		c.Flags().StringVar(&client, "client", "cli", "client name embedded in the token")
		c.Flags().StringVar(&scope, "scope", string(auth.ScopeControl), "token scope (read|control)")
		c.Flags().BoolVar(&save, "save", true, "store the token in --token-file")
	}
	cmd.AddCommand(sign, issue)

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke",
		Short: "Invalidate every issued token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp map[string]any
			if err := root.client().do(cmd.Context(), http.MethodPost, "/auth/revoke", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "all tokens revoked (generation %v)\n", resp["generation"])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "login <token>",
		Short: "Save an existing token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := saveToken(root.TokenPath, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token saved")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Remove the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return clearToken(root.TokenPath)
		},
	})

	return cmd
}

func emitToken(cmd *cobra.Command, root *RootOptions, tok string, exp time.Time, save bool) error {
	if !save {
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	}
	if err := saveToken(root.TokenPath, tok); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "token saved to %s (expires %s)\n", root.TokenPath, exp.Format(time.RFC3339))
	return nil
}
