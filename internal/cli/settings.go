package cli

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"stockwatch/pkg/models"
)

func newSettingsCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change notification settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var s models.NotificationSettings
			if err := root.client().do(cmd.Context(), http.MethodGet, "/settings", nil, &s); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	})

	var (
		enabled, allStores, region bool
		interval                   int
		stores                     []string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change settings; only flags given are applied",
		Example: `  stockwatch settings set --interval 30
  stockwatch settings set --stores chain1=01,02 --all-stores-when-empty=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := root.client()
			var s models.NotificationSettings
			if err := c.do(cmd.Context(), http.MethodGet, "/settings", nil, &s); err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("enabled") {
				s.Enabled = enabled
			}
			if f.Changed("interval") {
				s.IntervalMinutes = interval
			}
			if f.Changed("all-stores-when-empty") {
				s.AllStoresWhenEmpty = allStores
			}
			if f.Changed("region-filter") {
				s.RegionFilterEnabled = region
			}
			if f.Changed("stores") {
				byChain, err := parseStores(stores)
				if err != nil {
					return err
				}
				if s.TrackedStoresByChain == nil {
					s.TrackedStoresByChain = map[models.ChainID][]string{}
				}
				for chain, ids := range byChain {
					s.TrackedStoresByChain[chain] = ids
				}
			}
			var saved models.NotificationSettings
			if err := c.do(cmd.Context(), http.MethodPut, "/settings", s, &saved); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}
	set.Flags().BoolVar(&enabled, "enabled", true, "enable background checks")
	set.Flags().IntVar(&interval, "interval", 60, "check interval in minutes")
	set.Flags().BoolVar(&allStores, "all-stores-when-empty", true, "an empty store list counts every store")
	set.Flags().BoolVar(&region, "region-filter", false, "only count stores in the configured region")
	set.Flags().StringArrayVar(&stores, "stores", nil, "tracked stores as chain=id,id (repeatable, empty list clears)")
	cmd.AddCommand(set)

	return cmd
}

// parseStores turns ["chain1=01,02", "chain2="] into a store map.
func parseStores(args []string) (map[models.ChainID][]string, error) {
	out := make(map[models.ChainID][]string, len(args))
	for _, arg := range args {
		rawChain, list, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --stores %q, want chain=id,id", arg)
		}
		chain, err := models.ParseChain(strings.TrimSpace(rawChain))
		if err != nil {
			return nil, err
		}
		ids := []string{}
		for _, id := range strings.Split(list, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		out[chain] = ids
	}
	return out, nil
}
