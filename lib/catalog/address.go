package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pickupbot/lib/webshop"
)

type addressLookup struct {
	Head struct {
		Status string `json:"status"`
	} `json:"head"`
	Body map[string]json.RawMessage `json:"body"`
}

// FetchAddresses queries the storefront address-lookup endpoint. The
// filter narrows the result level by level: "" lists states,
// "<state>" lists its cities, "<state> <city>" lists districts and
// "<state> <city> <district>" resolves the postal code.
func FetchAddresses(ctx context.Context, country, filter string) ([]string, error) {
	query := map[string]string{}
	parts := strings.Fields(filter)
	keys := []string{"state", "city", "district"}
	for i, part := range parts {
		if i >= len(keys) {
			break
		}
		query[keys[i]] = part
	}

	url := fmt.Sprintf("https://www.apple.com/%s/shop/address-lookup", country)
	res, err := client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(url)
	if err != nil {
		return nil, err
	}
	if err := webshop.EnsureStatus(res, 200); err != nil {
		return nil, err
	}

	var lookup addressLookup
	if err := json.Unmarshal(res.Body(), &lookup); err != nil {
		return nil, fmt.Errorf("parse address lookup: %w", err)
	}
	if lookup.Head.Status != "200" {
		return nil, &webshop.ProtocolError{
			URL:    url,
			Reason: fmt.Sprintf("address lookup returned status %s", lookup.Head.Status),
		}
	}

	addresses, ok := decodeAddressBody(lookup.Body)
	if !ok {
		return nil, &webshop.ProtocolError{URL: url, Reason: "address lookup body empty"}
	}
	return addresses, nil
}

// decodeAddressBody unpacks the single body entry, whose shape
// depends on the lookup level: either a {data: [{value}]} listing or
// a bare string once the hierarchy bottoms out at a postal code.
func decodeAddressBody(body map[string]json.RawMessage) ([]string, bool) {
	for _, raw := range body {
		var listing struct {
			Data []struct {
				Value string `json:"value"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &listing); err == nil && len(listing.Data) > 0 {
			values := make([]string, 0, len(listing.Data))
			for _, entry := range listing.Data {
				values = append(values, entry.Value)
			}
			return values, true
		}
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			return []string{single}, true
		}
	}
	return nil, false
}
