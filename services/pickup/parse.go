package pickup

import (
	"encoding/json"
	"sort"
	"strings"
)

const (
	StatusAvailable  = "available"
	StatusIneligible = "ineligible"
)

// Offer is one (store, model) pickup availability record from a
// single poll cycle. Offers are produced fresh every cycle and never
// persisted beyond the optional history log.
type Offer struct {
	StoreName   string
	StoreNumber string
	State       string
	City        string
	District    string
	ModelName   string
	PartNumber  string
	Status      string
	PickupType  string
	Quote       string
}

// Describe renders the offer the way it is logged and alerted.
func (o Offer) Describe() string {
	return strings.Join([]string{
		o.StoreName,
		o.ModelName,
		o.PickupType,
		o.Quote,
	}, " ")
}

type partAvailability struct {
	PartNumber        string `json:"partNumber"`
	PickupDisplay     string `json:"pickupDisplay"`
	PickupType        string `json:"pickupType"`
	PickupSearchQuote string `json:"pickupSearchQuote"`
	MessageTypes      struct {
		Regular struct {
			StorePickupProductTitle string `json:"storePickupProductTitle"`
		} `json:"regular"`
	} `json:"messageTypes"`
}

type fulfillmentStore struct {
	StoreName         string                      `json:"storeName"`
	StoreNumber       string                      `json:"storeNumber"`
	PartsAvailability map[string]partAvailability `json:"partsAvailability"`
	RetailStore       struct {
		Address struct {
			State    string `json:"state"`
			City     string `json:"city"`
			District string `json:"district"`
		} `json:"address"`
	} `json:"retailStore"`
}

type fulfillmentResponse struct {
	Body struct {
		Content struct {
			PickupMessage struct {
				Stores []fulfillmentStore `json:"stores"`
			} `json:"pickupMessage"`
		} `json:"content"`
	} `json:"body"`
}

// parseOffers flattens the fulfillment response into one offer per
// (store, part). Store order follows the response; parts within a
// store are keyed by part number and sorted for a stable order.
func parseOffers(data []byte) ([]Offer, error) {
	var parsed fulfillmentResponse
	err := json.Unmarshal(data, &parsed)
	if err != nil {
		return nil, err
	}

	var offers []Offer
	for _, store := range parsed.Body.Content.PickupMessage.Stores {
		partKeys := make([]string, 0, len(store.PartsAvailability))
		for key := range store.PartsAvailability {
			partKeys = append(partKeys, key)
		}
		sort.Strings(partKeys)

		for _, key := range partKeys {
			part := store.PartsAvailability[key]
			modelName := strings.ReplaceAll(
				part.MessageTypes.Regular.StorePickupProductTitle,
				" ", " ",
			)
			offers = append(offers, Offer{
				StoreName:   store.StoreName,
				StoreNumber: store.StoreNumber,
				State:       store.RetailStore.Address.State,
				City:        store.RetailStore.Address.City,
				District:    store.RetailStore.Address.District,
				ModelName:   modelName,
				PartNumber:  part.PartNumber,
				Status:      part.PickupDisplay,
				PickupType:  part.PickupType,
				Quote:       part.PickupSearchQuote,
			})
		}
	}
	return offers, nil
}

// filterByStore keeps an offer when no filters are configured, or
// when any filter substring appears in the store name.
func filterByStore(offers []Offer, filters []string) []Offer {
	if len(filters) == 0 {
		return offers
	}
	var kept []Offer
	for _, offer := range offers {
		for _, filter := range filters {
			if strings.Contains(offer.StoreName, filter) {
				kept = append(kept, offer)
				break
			}
		}
	}
	return kept
}

func availableOffers(offers []Offer) []Offer {
	var available []Offer
	for _, offer := range offers {
		if offer.Status == StatusAvailable {
			available = append(available, offer)
		}
	}
	return available
}
