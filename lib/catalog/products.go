// Package catalog covers the one-shot read-only storefront queries:
// product listings, payment method listings and address lookups. None
// of these carry session state.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"pickupbot/lib/telemetry"
	"pickupbot/lib/webshop"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/go-resty/resty/v2"
)

var client = newClient()

func newClient() *resty.Client {
	c := resty.New()
	c.SetHeader("user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/117.0")
	telemetry.InstrumentResty(c, "catalog/http")
	return c
}

type Product struct {
	Model        string
	Type         string
	Color        string
	Capacity     string
	ColorDisplay string
	Price        float64
	PriceDisplay string
	Currency     string
	CarrierModel string
}

func (p Product) Describe() string {
	fields := []string{
		p.Model,
		p.Type,
		p.Capacity,
		p.CarrierModel,
		p.ColorDisplay,
		p.PriceDisplay,
	}
	var kept []string
	for _, f := range fields {
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

const productSelectionMarker = "productSelectionData"

var productSelectionRegex = regexp.MustCompile(`(?s)window\.PRODUCT_SELECTION_BOOTSTRAP = (.+?)</script>`)

// FetchProducts lists the orderable models for a product line, sorted
// by price then color.
func FetchProducts(ctx context.Context, country, code string) ([]Product, error) {
	res, err := client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("https://www.apple.com/%s/shop/buy-iphone/iphone-%s", country, code))
	if err != nil {
		return nil, err
	}
	if err := webshop.EnsureStatus(res, 200); err != nil {
		return nil, err
	}
	return parseProducts(res.Body())
}

type productSelection struct {
	ProductSelectionData struct {
		Products []struct {
			FamilyType        string `json:"familyType"`
			PartNumber        string `json:"partNumber"`
			DimensionColor    string `json:"dimensionColor"`
			DimensionCapacity string `json:"dimensionCapacity"`
			CarrierModel      string `json:"carrierModel"`
			FullPrice         string `json:"fullPrice"`
		} `json:"products"`
		DisplayValues struct {
			Prices map[string]struct {
				CurrentPrice struct {
					RawAmount json.Number `json:"raw_amount"`
					Amount    string      `json:"amount"`
				} `json:"currentPrice"`
				PriceCurrency string `json:"priceCurrency"`
			} `json:"prices"`
			DimensionColor map[string]struct {
				Value string `json:"value"`
			} `json:"dimensionColor"`
		} `json:"displayValues"`
	} `json:"productSelectionData"`
}

func parseProducts(content []byte) ([]Product, error) {
	groups := productSelectionRegex.FindSubmatch(content)
	if groups == nil {
		return nil, &webshop.ProtocolError{
			URL:    "buy page",
			Reason: "product selection bootstrap missing",
		}
	}

	// the bootstrap is a javascript statement: an object literal whose
	// only bare key is the product selection one, usually closed with a
	// semicolon. quoting the key and dropping the semicolon yields json
	text := strings.TrimSpace(string(groups[1]))
	text = strings.TrimSuffix(text, ";")
	text = strings.Replace(text, productSelectionMarker, strconv.Quote(productSelectionMarker), 1)

	var selection productSelection
	err := json.Unmarshal([]byte(text), &selection)
	if err != nil {
		return nil, err
	}

	data := selection.ProductSelectionData
	var products []Product
	for _, raw := range data.Products {
		price := data.DisplayValues.Prices[raw.FullPrice]
		amount, _ := price.CurrentPrice.RawAmount.Float64()
		products = append(products, Product{
			Model:        raw.PartNumber,
			Type:         raw.FamilyType,
			Color:        raw.DimensionColor,
			Capacity:     raw.DimensionCapacity,
			ColorDisplay: data.DisplayValues.DimensionColor[raw.DimensionColor].Value,
			Price:        amount,
			PriceDisplay: price.CurrentPrice.Amount,
			Currency:     price.PriceCurrency,
			CarrierModel: raw.CarrierModel,
		})
	}

	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Price != products[j].Price {
			return products[i].Price < products[j].Price
		}
		return products[i].Color < products[j].Color
	})
	return products, nil
}

// RankProducts orders products by similarity between the query and
// each product's description, best match first.
func RankProducts(products []Product, query string) []Product {
	ranked := make([]Product, len(products))
	copy(ranked, products)
	sort.SliceStable(ranked, func(i, j int) bool {
		left := matchr.JaroWinkler(query, ranked[i].Describe(), false)
		right := matchr.JaroWinkler(query, ranked[j].Describe(), false)
		return left > right
	})
	return ranked
}
