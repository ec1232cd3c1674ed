package commands

import (
	"errors"

	"posheet/internal/sku"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var resolveShop *string

func init() {
	resolveShop = resolveCmd.Flags().String("shop", "", "The storefront shop id, defaults to the configured one.")
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [--shop <shop_id>] <sku>...",
	Short: "Prints the product page and image resolved for each sku.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shopID := *resolveShop
		if shopID == "" {
			shopID = globals.cfg.Defaults.ShopID
		}
		if shopID == "" {
			return errors.New("no shop id configured, pass --shop")
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"SKU", "Base code", "Outcome", "Page", "Image"})
		for _, raw := range args {
			normalized, ok := sku.Normalize(raw)
			if !ok {
				continue
			}
			res := client.Resolve(cmd.Context(), normalized, shopID)
			t.AppendRow(table.Row{
				normalized,
				sku.BaseCode(normalized),
				res.Outcome.String(),
				res.PageURL,
				res.Sentinel(),
			})
		}
		t.Render()
		return nil
	},
}
