package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed payments
var paymentsFS embed.FS

// Payment is one storefront payment option, including the installment
// plans it supports (a plain payment has the single plan 1).
type Payment struct {
	Label   string
	Key     string
	Value   string
	Numbers []int
}

func (p Payment) Describe() string {
	if len(p.Numbers) <= 1 {
		return p.Label
	}
	return fmt.Sprintf("%s (installments: %v)", p.Label, p.Numbers)
}

// ListPayments returns the payment methods known for a country. Only a
// few storefronts are bundled; an unknown country is an error rather
// than an empty list.
func ListPayments(country string) ([]Payment, error) {
	raw, err := paymentsFS.ReadFile("payments/" + country + ".json")
	if err != nil {
		return nil, fmt.Errorf("no payment methods bundled for country %q: %w", country, err)
	}
	var entries []struct {
		Label         string `json:"label"`
		LabelImageAlt string `json:"labelImageAlt"`
		ModuleKey     string `json:"moduleKey"`
		Value         string `json:"value"`
		Numbers       []int  `json:"numbers"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse payment methods for %q: %w", country, err)
	}
	payments := make([]Payment, 0, len(entries))
	for _, e := range entries {
		label := e.Label
		if label == "" {
			label = e.LabelImageAlt
		}
		payments = append(payments, Payment{
			Label:   label,
			Key:     e.ModuleKey,
			Value:   e.Value,
			Numbers: e.Numbers,
		})
	}
	return payments, nil
}
