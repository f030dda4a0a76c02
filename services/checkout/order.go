package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"pickupbot/lib/webshop"

	"go.opentelemetry.io/otel/codes"
)

// PlaceOrder runs the per-attempt stages against an established
// session: store selection, pickup window, contact, recipient,
// payment, review submission and completion confirmation. It returns
// the assigned order number. ErrNoPickupWindow means this offer
// cannot be ordered right now; the session stays usable only for a
// fresh attempt and is normally discarded by the caller either way.
func (c *Client) PlaceOrder(ctx context.Context, intent OrderIntent) (string, error) {
	ctx, span := tracer.Start(ctx, "PlaceOrder")
	defer span.End()

	slog.InfoContext(
		ctx, "order starting",
		"model", intent.Model,
		"store", intent.StoreNumber,
		"state", intent.State,
		"city", intent.City,
	)

	searchEnv, err := c.fillAddress(ctx, intent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store search")
		return "", err
	}

	slots, found, err := decodeTimeSlots(searchEnv.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode time slots")
		return "", &webshop.ProtocolError{
			URL:    c.secureHost + "/shop/checkoutx",
			Reason: "store search body does not decode",
		}
	}
	if !found {
		slog.InfoContext(ctx, "no pickup time offered", "store", intent.StoreNumber)
		return "", ErrNoPickupWindow
	}

	selected, err := selectPickupWindow(slots)
	if err != nil {
		return "", err
	}
	slog.InfoContext(
		ctx, "pickup window selected",
		"day", selected.date.DayOfWeek,
		"window", selected.window.Label,
	)

	err = c.fillContact(ctx, intent, selected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fill contact")
		return "", err
	}
	err = c.fillRecipient(ctx, intent.Delivery)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fill recipient")
		return "", err
	}
	err = c.fillPayment(ctx, intent.Delivery)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fill payment")
		return "", err
	}

	orderNumber, err := c.confirm(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm")
		return "", err
	}
	return orderNumber, nil
}

func storeLocatorFields(intent OrderIntent) map[string]string {
	locator := "checkout.fulfillment.pickupTab.pickup.storeLocator"
	selector := locator + ".address.stateCitySelectorForCheckout"
	return map[string]string{
		locator + ".showAllStores":        "false",
		locator + ".selectStore":          intent.StoreNumber,
		locator + ".searchInput":          fmt.Sprintf("%s %s %s", intent.State, intent.City, intent.District),
		selector + ".city":                 intent.City,
		selector + ".state":                intent.State,
		selector + ".provinceCityDistrict": fmt.Sprintf("%s %s %s", intent.State, intent.City, intent.District),
		selector + ".countryCode":          intent.Country,
		selector + ".district":             intent.District,
	}
}

func (c *Client) fillAddress(ctx context.Context, intent OrderIntent) (envelope, error) {
	slog.InfoContext(ctx, "selecting store", "store", intent.StoreNumber)

	return c.postChecked(ctx, c.secureHost+"/shop/checkoutx", map[string]string{
		"_a": "search",
		"_m": "checkout.fulfillment.pickupTab.pickup.storeLocator",
	}, storeLocatorFields(intent), 200)
}

func (c *Client) fillContact(ctx context.Context, intent OrderIntent, selected selectedWindow) error {
	slog.InfoContext(ctx, "submitting pickup window")

	form := storeLocatorFields(intent)
	form["checkout.fulfillment.fulfillmentOptions.selectFulfillmentLocation"] = "RETAIL"

	slotRestricted := ""
	if selected.slots.IsRestricted {
		slotRestricted = "true"
	}
	slots := "checkout.fulfillment.pickupTab.pickup.timeSlot.dateTimeSlots"
	form[slots+".startTime"] = selected.window.CheckInStart
	form[slots+".endTime"] = selected.window.CheckInEnd
	form[slots+".displayStartTime"] = selected.slots.DisplayStartTime
	form[slots+".displayEndTime"] = selected.slots.DisplayEndTime
	form[slots+".isRecommended"] = strconv.FormatBool(selected.slots.IsRecommended)
	form[slots+".date"] = selected.date.Date
	form[slots+".timeSlotId"] = selected.window.SlotID
	form[slots+".signKey"] = selected.window.SignKey
	form[slots+".timeZone"] = selected.window.TimeZone
	form[slots+".timeSlotValue"] = selected.window.TimeSlotValue
	form[slots+".dayRadio"] = selected.slots.DayRadio
	form[slots+".isRestricted"] = slotRestricted

	_, err := c.postChecked(ctx, c.secureHost+"/shop/checkoutx", map[string]string{
		"_a": "continueFromFulfillmentToPickupContact",
		"_m": "checkout.fulfillment",
	}, form, 200)
	return err
}

func (c *Client) fillRecipient(ctx context.Context, profile DeliveryProfile) error {
	slog.InfoContext(ctx, "submitting recipient")

	contact := "checkout.pickupContact.selfPickupContact"
	_, err := c.postChecked(ctx, c.secureHost+"/shop/checkoutx", map[string]string{
		"_a": "continueFromPickupContactToBilling",
		"_m": "checkout.pickupContact",
	}, map[string]string{
		contact + ".selfContact.address.lastName":         profile.LastName,
		contact + ".selfContact.address.firstName":        profile.FirstName,
		contact + ".selfContact.address.emailAddress":     profile.Email,
		contact + ".selfContact.address.fullDaytimePhone": profile.Phone,
		contact + ".nationalIdSelf.nationalIdSelf":        profile.NationalID,
		"checkout.pickupContact.eFapiaoSelector.selectFapiao": "none",
	}, 200)
	return err
}

func (c *Client) fillPayment(ctx context.Context, profile DeliveryProfile) error {
	slog.InfoContext(ctx, "submitting payment method", "method", profile.PaymentMethod)

	_, err := c.postChecked(ctx, c.secureHost+"/shop/checkoutx/billing", map[string]string{
		"_a": "selectBillingOptionAction",
		"_m": "checkout.billing.billingOptions",
	}, map[string]string{
		"checkout.billing.billingOptions.selectBillingOption": profile.PaymentMethod,
		"checkout.locationConsent.locationConsent":            "false",
	}, 200)
	if err != nil {
		return err
	}

	_, err = c.postChecked(ctx, c.secureHost+"/shop/checkoutx/billing", map[string]string{
		"_a": "continueFromBillingToReview",
		"_m": "checkout.billing",
	}, map[string]string{
		"checkout.billing.billingOptions.selectBillingOption": profile.PaymentMethod,
		"checkout.billing.billingOptions.selectedBillingOptions.installments.installmentOptions.selectInstallmentOption": strconv.Itoa(profile.Installments),
	}, 200)
	return err
}

// confirm submits the review for processing and polls until the thank
// you page carries an order number. Both submissions answer non-302
// while the order is still being processed and are retried in place.
func (c *Client) confirm(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "confirm")
	defer span.End()

	slog.InfoContext(ctx, "submitting order for processing")
	processEnv, err := c.postUntilStatus(ctx, c.secureHost+"/shop/checkoutx", map[string]string{
		"_a": "continueFromReviewToProcess",
		"_m": "checkout.review.placeOrder",
	}, nil, 302)
	if err != nil {
		return "", err
	}
	processURL := c.secureHost + processEnv.Head.Data.URL

	_, err = c.fetchPageMeta(ctx, processURL, nil)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "polling order status")
	_, err = c.postUntilStatus(ctx, c.secureHost+"/shop/checkoutx/statusX", map[string]string{
		"_a": "checkStatus",
		"_m": "spinner",
	}, nil, 302)
	if err != nil {
		return "", err
	}

	attempts := 0
	for {
		page, err := c.fetchPageMeta(ctx, processURL, nil)
		if err != nil {
			return "", err
		}
		if orderNumber := page.ThankYouInterstitial.D.OrderNumber; orderNumber != "" {
			slog.InfoContext(ctx, "order placed", "order_number", orderNumber)
			return orderNumber, nil
		}

		attempts++
		if c.confirmRetryLimit > 0 && attempts >= c.confirmRetryLimit {
			return "", errors.New("order confirmation page never carried an order number")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}
