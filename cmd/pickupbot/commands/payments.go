package commands

import (
	"os"
	"strconv"
	"strings"

	"pickupbot/lib/catalog"
	"pickupbot/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var paymentsCountry *string

func init() {
	paymentsCountry = paymentsCmd.Flags().String("country", "", "Storefront country code, e.g. cn.")
	paymentsCmd.MarkFlagRequired("country")
	rootCmd.AddCommand(paymentsCmd)
}

var paymentsCmd = &cobra.Command{
	Use:   "payments --country <code>",
	Short: "Lists the payment methods usable with DELIVERY_PAYMENT.",
	Run: func(cmd *cobra.Command, args []string) {
		payments, err := catalog.ListPayments(*paymentsCountry)
		if err != nil {
			serviceutil.Fatal("failed to list payment methods", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Label", "Value", "Installments"})
		for _, p := range payments {
			numbers := make([]string, len(p.Numbers))
			for i, n := range p.Numbers {
				numbers[i] = strconv.Itoa(n)
			}
			t.AppendRow(table.Row{p.Label, p.Value, strings.Join(numbers, ", ")})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
