package commands

import (
	"fmt"
	"strings"

	"pickupbot/lib/catalog"
	"pickupbot/lib/serviceutil"

	"github.com/spf13/cobra"
)

var addressCountry *string

func init() {
	addressCountry = addressCmd.Flags().String("country", "", "Storefront country code, e.g. cn.")
	addressCmd.MarkFlagRequired("country")
	rootCmd.AddCommand(addressCmd)
}

var addressCmd = &cobra.Command{
	Use:   "address --country <code> [state [city [district]]]",
	Short: "Walks the storefront address hierarchy down to the postal code.",
	Run: func(cmd *cobra.Command, args []string) {
		filter := strings.Join(args, " ")
		addresses, err := catalog.FetchAddresses(cmd.Context(), *addressCountry, filter)
		if err != nil {
			serviceutil.Fatal("failed to look up addresses", err)
		}
		for _, a := range addresses {
			fmt.Println(a)
		}
	},
}
