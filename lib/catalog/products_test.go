package catalog

import (
	"strings"
	"testing"

	"pickupbot/lib/webshop"

	"github.com/stretchr/testify/require"
)

const buyPageFixture = `<html><body>
<script type="text/javascript">
window.PRODUCT_SELECTION_BOOTSTRAP = {
	productSelectionData: {
		"products": [
			{
				"familyType": "iphone16pro",
				"partNumber": "MYTP3CH/A",
				"dimensionColor": "naturaltitanium",
				"dimensionCapacity": "256gb",
				"carrierModel": "UNLOCKED/US",
				"fullPrice": "iphone16pro_256gb"
			},
			{
				"familyType": "iphone16pro",
				"partNumber": "MYT93CH/A",
				"dimensionColor": "blacktitanium",
				"dimensionCapacity": "128gb",
				"carrierModel": "UNLOCKED/US",
				"fullPrice": "iphone16pro_128gb"
			},
			{
				"familyType": "iphone16pro",
				"partNumber": "MYTQ3CH/A",
				"dimensionColor": "blacktitanium",
				"dimensionCapacity": "256gb",
				"carrierModel": "UNLOCKED/US",
				"fullPrice": "iphone16pro_256gb"
			}
		],
		"displayValues": {
			"prices": {
				"iphone16pro_128gb": {
					"currentPrice": {"raw_amount": "7999", "amount": "RMB 7,999"},
					"priceCurrency": "RMB"
				},
				"iphone16pro_256gb": {
					"currentPrice": {"raw_amount": "8999", "amount": "RMB 8,999"},
					"priceCurrency": "RMB"
				}
			},
			"dimensionColor": {
				"naturaltitanium": {"value": "原色钛金属"},
				"blacktitanium": {"value": "黑色钛金属"}
			}
		}
	}
};
</script>
</body></html>`

func TestParseProducts(t *testing.T) {
	products, err := parseProducts([]byte(buyPageFixture))
	require.NoError(t, err)
	require.Len(t, products, 3)

	// cheapest first, then by color within the same price
	require.Equal(t, "MYT93CH/A", products[0].Model)
	require.Equal(t, "MYTQ3CH/A", products[1].Model)
	require.Equal(t, "MYTP3CH/A", products[2].Model)

	require.Equal(t, float64(8999), products[2].Price)
	require.Equal(t, "RMB 8,999", products[2].PriceDisplay)
	require.Equal(t, "原色钛金属", products[2].ColorDisplay)
	require.Equal(t, "256gb", products[2].Capacity)
}

func TestParseProductsWithoutTrailingSemicolon(t *testing.T) {
	fixture := strings.Replace(buyPageFixture, "};\n</script>", "}\n</script>", 1)
	products, err := parseProducts([]byte(fixture))
	require.NoError(t, err)
	require.Len(t, products, 3)
}

func TestParseProductsMissingBootstrap(t *testing.T) {
	_, err := parseProducts([]byte("<html><body>nothing here</body></html>"))
	var protocolErr *webshop.ProtocolError
	require.ErrorAs(t, err, &protocolErr)
}

func TestRankProducts(t *testing.T) {
	products, err := parseProducts([]byte(buyPageFixture))
	require.NoError(t, err)

	ranked := RankProducts(products, "MYTQ3CH/A iphone16pro 256gb UNLOCKED/US 黑色钛金属 RMB 8,999")
	require.Equal(t, "MYTQ3CH/A", ranked[0].Model)

	// ranking copies, the input order is untouched
	require.Equal(t, "MYT93CH/A", products[0].Model)
}
