package commands

import (
	"os"

	"pickupbot/lib/catalog"
	"pickupbot/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var productsFlags struct {
	country *string
	code    *string
	find    *string
}

func init() {
	f := productsCmd.Flags()
	productsFlags.country = f.String("country", "", "Storefront country code, e.g. cn.")
	productsFlags.code = f.String("code", "16-pro", "Product line code of the buy page, e.g. 16-pro.")
	productsFlags.find = f.String("find", "", "Fuzzy-match products against this description and rank by similarity.")

	productsCmd.MarkFlagRequired("country")
	rootCmd.AddCommand(productsCmd)
}

var productsCmd = &cobra.Command{
	Use:   "products --country <code> [--code <line>] [--find <description>]",
	Short: "Lists the orderable models of a product line.",
	Run: func(cmd *cobra.Command, args []string) {
		products, err := catalog.FetchProducts(cmd.Context(), *productsFlags.country, *productsFlags.code)
		if err != nil {
			serviceutil.Fatal("failed to fetch products", err)
		}
		if *productsFlags.find != "" {
			products = catalog.RankProducts(products, *productsFlags.find)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Model", "Type", "Capacity", "Color", "Price"})
		for _, p := range products {
			t.AppendRow(table.Row{p.Model, p.Type, p.Capacity, p.ColorDisplay, p.PriceDisplay})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
