package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stockwatch/pkg/models"
)

func newCheckCommand(root *RootOptions) *cobra.Command {
	var chain string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run an availability cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/availability/check"
			if chain != "" {
				path += "?" + url.Values{"chain": {chain}}.Encode()
			}
			var out map[string]any
			if err := root.client().do(cmd.Context(), http.MethodPost, path, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "only check this chain")
	return cmd
}

type snapshotResponse struct {
	Chain    models.ChainID   `json:"chain"`
	State    string           `json:"state"`
	Products []models.Product `json:"products"`
}

func newAvailabilityCommand(root *RootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "availability <chain>",
		Aliases: []string{"av"},
		Short:   "Show the last known availability of tracked products",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp snapshotResponse
			if err := root.client().do(cmd.Context(), http.MethodGet, "/availability/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tAVAILABLE\tSTORES IN STOCK")
			for _, p := range resp.Products {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%d/%d\n", p.ProductID, p.Name, p.AvailableAnywhere, inStock(p), len(p.StoreDetail))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func inStock(p models.Product) int {
	n := 0
	for _, d := range p.StoreDetail {
		if d.HasInventory {
			n++
		}
	}
	return n
}

func newStatusCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler and per-chain cycle status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := root.client()
			var sched, cycles map[string]any
			if err := c.do(cmd.Context(), http.MethodGet, "/scheduler", nil, &sched); err != nil {
				return err
			}
			if err := c.do(cmd.Context(), http.MethodGet, "/cycles", nil, &cycles); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"scheduler": sched,
				"chains":    cycles["chains"],
			})
		},
	}
}
