package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"stockwatch/pkg/models"
)

type productsResponse struct {
	Tracked       models.TrackedProducts    `json:"trackedProductIds"`
	SelectedChain models.ChainID            `json:"selectedChain"`
	Selected      map[models.ChainID]string `json:"selectedProducts"`
}

type trackedRow struct {
	Chain     models.ChainID
	ProductID string
}

func newProductsCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"p"},
		Short:   "Manage tracked products",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tracked products per chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp productsResponse
			if err := root.client().do(cmd.Context(), http.MethodGet, "/products", nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "add <chain> <product-id|product-url>",
		Short:   "Track a product",
		Example: "  stockwatch products add chain1 https://automercado.cr/p/leche/id/3001",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			payload := map[string]string{"productId": args[1]}
			if err := root.client().do(cmd.Context(), http.MethodPost, "/products/"+url.PathEscape(args[0]), payload, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tracking %s on %s\n", out["productId"], args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "rm <chain> <product-id>",
		Aliases: []string{"remove"},
		Short:   "Stop tracking a product",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/products/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
			if err := root.client().do(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", args[1], args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "select <chain> [product-id]",
		Short: "Set the selected chain and optionally its selected product",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := models.ParseChain(args[0])
			if err != nil {
				return err
			}
			c := root.client()
			var cur productsResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/products", nil, &cur); err != nil {
				return err
			}
			sel := map[string]any{"selectedChain": chain, "selectedProducts": cur.Selected}
			if len(args) == 2 {
				if cur.Selected == nil {
					cur.Selected = map[models.ChainID]string{}
				}
				cur.Selected[chain] = args[1]
				sel["selectedProducts"] = cur.Selected
			}
			var out map[string]any
			if err := c.do(cmd.Context(), http.MethodPut, "/selection", sel, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	})

	cmd.AddCommand(newImportCommand(root))
	cmd.AddCommand(newExportCommand(root))
	return cmd
}

func newImportCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Track every product listed in a chain,product_id CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := readTrackedCSV(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			added, skipped, err := importRows(cmd.Context(), root.client(), rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d products (%d already tracked)\n", added, skipped)
			return nil
		},
	}
}

func importRows(ctx context.Context, c *apiClient, rows []trackedRow) (added, skipped int, err error) {
	for _, row := range rows {
		payload := map[string]string{"productId": row.ProductID}
		err := c.do(ctx, http.MethodPost, "/products/"+url.PathEscape(string(row.Chain)), payload, nil)
		switch {
		case isStatus(err, http.StatusConflict):
			skipped++
		case err != nil:
			return added, skipped, fmt.Errorf("add %s/%s: %w", row.Chain, row.ProductID, err)
		default:
			added++
		}
	}
	return added, skipped, nil
}

func newExportCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Write tracked products as a chain,product_id CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp productsResponse
			if err := root.client().do(cmd.Context(), http.MethodGet, "/products", nil, &resp); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(args[0]), 0o755); err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := writeTrackedCSV(f, resp.Tracked)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d products to %s\n", n, args[0])
			return nil
		},
	}
}

// readTrackedCSV reads rows by header name so column order does not matter.
func readTrackedCSV(r io.Reader) ([]trackedRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if _, ok := header["chain"]; !ok {
		return nil, errors.New("missing chain column")
	}
	if _, ok := header["product_id"]; !ok {
		return nil, errors.New("missing product_id column")
	}

	var rows []trackedRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		id := valueAt(header, rec, "product_id")
		if id == "" {
			continue
		}
		chain, err := models.ParseChain(valueAt(header, rec, "chain"))
		if err != nil {
			return nil, err
		}
		rows = append(rows, trackedRow{Chain: chain, ProductID: id})
	}
	return rows, nil
}

func writeTrackedCSV(w io.Writer, tracked models.TrackedProducts) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"chain", "product_id"}); err != nil {
		return 0, err
	}
	chains := make([]models.ChainID, 0, len(tracked))
	for chain := range tracked {
		chains = append(chains, chain)
	}
	slices.Sort(chains)

	n := 0
	for _, chain := range chains {
		for _, id := range tracked[chain] {
			if err := cw.Write([]string{string(chain), id}); err != nil {
				return n, err
			}
			n++
		}
	}
	cw.Flush()
	return n, cw.Error()
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(row))
	for i, col := range row {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	return idx, nil
}

func valueAt(header map[string]int, row []string, col string) string {
	i, ok := header[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
