package checkout

import (
	"encoding/json"
	"sort"
)

type pickupWindow struct {
	Label         string `json:"Label"`
	SlotID        string `json:"SlotId"`
	CheckInStart  string `json:"checkInStart"`
	CheckInEnd    string `json:"checkInEnd"`
	SignKey       string `json:"signKey"`
	TimeZone      string `json:"timeZone"`
	TimeSlotValue string `json:"timeSlotValue"`
	IsRestricted  bool   `json:"isRestricted"`
}

type pickupDate struct {
	Date      string `json:"date"`
	DayOfWeek string `json:"dayOfWeek"`
}

// dateTimeSlots mirrors the time slot payload inside the store search
// response. timeSlotWindows is indexed in step with pickUpDates; each
// entry groups windows under opaque server keys.
type dateTimeSlots struct {
	PickUpDates      []pickupDate                `json:"pickUpDates"`
	TimeSlotWindows  []map[string][]pickupWindow `json:"timeSlotWindows"`
	DisplayStartTime string                      `json:"displayStartTime"`
	DisplayEndTime   string                      `json:"displayEndTime"`
	DayRadio         string                      `json:"dayRadio"`
	IsRecommended    bool                        `json:"isRecommended"`
	IsRestricted     bool                        `json:"isRestricted"`
}

type storeSearchBody struct {
	Checkout struct {
		Fulfillment struct {
			PickupTab struct {
				Pickup struct {
					TimeSlot *struct {
						DateTimeSlots struct {
							D dateTimeSlots `json:"d"`
						} `json:"dateTimeSlots"`
					} `json:"timeSlot"`
				} `json:"pickup"`
			} `json:"pickupTab"`
		} `json:"fulfillment"`
	} `json:"checkout"`
}

type selectedWindow struct {
	slots  dateTimeSlots
	window pickupWindow
	date   pickupDate
}

func decodeTimeSlots(body json.RawMessage) (dateTimeSlots, bool, error) {
	var parsed storeSearchBody
	err := json.Unmarshal(body, &parsed)
	if err != nil {
		return dateTimeSlots{}, false, err
	}
	slot := parsed.Checkout.Fulfillment.PickupTab.Pickup.TimeSlot
	if slot == nil {
		return dateTimeSlots{}, false, nil
	}
	return slot.DateTimeSlots.D, true, nil
}

// selectPickupWindow picks the first window not marked restricted,
// walking dates in server order and each date's windows in order.
func selectPickupWindow(d dateTimeSlots) (selectedWindow, error) {
	for i, group := range d.TimeSlotWindows {
		keys := make([]string, 0, len(group))
		for key := range group {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			for _, window := range group[key] {
				if window.IsRestricted {
					continue
				}
				selected := selectedWindow{slots: d, window: window}
				if i < len(d.PickUpDates) {
					selected.date = d.PickUpDates[i]
				}
				return selected, nil
			}
		}
	}
	return selectedWindow{}, ErrNoPickupWindow
}
