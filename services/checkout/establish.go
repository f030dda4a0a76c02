package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"pickupbot/lib/webshop"
	"strings"
	"time"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

// Establish walks the session through the stages that do not depend
// on a specific store: add to cart, checkout initiation, guest
// sign-in and delivery method selection. A session that completes
// this prefix is ready to place an order with minimal extra round
// trips.
func (c *Client) Establish(ctx context.Context, intent OrderIntent) error {
	ctx, span := tracer.Start(ctx, "Establish")
	defer span.End()

	err := c.addToCart(ctx, intent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add to cart")
		return err
	}

	itemID, err := c.cartItemID(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read cart item id")
		return err
	}

	signinURL, signinParams, err := c.startCheckout(ctx, itemID, intent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start checkout")
		return err
	}

	_, err = c.fetchPageMeta(ctx, signinURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch sign-in page")
		return err
	}

	env, err := c.signIn(ctx, signinParams)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "guest sign-in")
		return err
	}

	slog.DebugContext(ctx, "following post sign-in page", "url", env.Head.Data.URL)
	_, err = c.fetchPageMeta(ctx, env.Head.Data.URL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch post sign-in page")
		return err
	}

	err = c.selectDeliveryMethod(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select delivery method")
		return err
	}
	return nil
}

func (c *Client) addToCart(ctx context.Context, intent OrderIntent) error {
	slog.InfoContext(ctx, "adding to cart", "model", intent.Model)

	res, err := c.session.Get(ctx, "/shop/beacon/atb", nil)
	if err != nil {
		return err
	}

	atbToken := ""
	for _, cookie := range res.Cookies() {
		if cookie.Name == "as_atb" {
			segments := strings.Split(cookie.Value, "|")
			atbToken = segments[len(segments)-1]
		}
	}
	if atbToken == "" {
		return &webshop.ProtocolError{
			URL:    res.Request.URL,
			Reason: "as_atb cookie missing",
		}
	}

	query := map[string]string{
		"product":        intent.Model,
		"purchaseOption": "fullPrice",
		"step":           "select",
		"ams":            "0",
		"atbtoken":       atbToken,
		"igt":            "true",
		"add-to-cart":    "add-to-cart",
	}
	if intent.AccessoryType != "" {
		query["ao.add_"+intent.AccessoryType+"_ac_iup"] = intent.AccessoryModel
	}

	res, err = c.session.Get(
		ctx,
		fmt.Sprintf("/shop/buy-iphone/iphone-%s/%s", intent.ModelCode, intent.Model),
		query,
	)
	if err != nil {
		return err
	}
	return webshop.EnsureStatus(res, 200)
}

func (c *Client) cartItemID(ctx context.Context) (string, error) {
	slog.InfoContext(ctx, "reading cart item id")

	page, err := c.fetchPageMeta(ctx, "/shop/bag", nil)
	if err != nil {
		return "", err
	}
	items := page.ShoppingCart.Items.C
	if len(items) == 0 {
		return "", &webshop.ProtocolError{
			URL:    "/shop/bag",
			Reason: "cart page lists no items",
		}
	}
	itemID := items[len(items)-1]
	slog.DebugContext(ctx, "cart item id", "id", itemID)
	return itemID, nil
}

// startCheckout submits the cart and learns two things from the
// response: the sign-in url (with the query params the next step must
// carry forward) and the secure host all later checkout calls go to.
func (c *Client) startCheckout(ctx context.Context, itemID string, intent OrderIntent) (string, map[string]string, error) {
	slog.InfoContext(ctx, "starting checkout")

	item := "shoppingCart.items." + itemID
	form := map[string]string{
		"shoppingCart.recommendations.recommendedItem.part":                               "",
		item + ".isIntentToGift":                                                          "false",
		item + ".itemQuantity.quantity":                                                   "1",
		item + ".delivery.lineDeliveryOptions.address.provinceCityDistrictTabs.city":      intent.City,
		item + ".delivery.lineDeliveryOptions.address.provinceCityDistrictTabs.state":     intent.State,
		item + ".delivery.lineDeliveryOptions.address.provinceCityDistrictTabs.provinceCityDistrict": fmt.Sprintf("%s %s %s", intent.State, intent.City, intent.District),
		item + ".delivery.lineDeliveryOptions.address.provinceCityDistrictTabs.countryCode": intent.Country,
		item + ".delivery.lineDeliveryOptions.address.provinceCityDistrictTabs.district":    intent.District,
		"shoppingCart.locationConsent.locationConsent": "false",
		"shoppingCart.summary.promoCode.promoCode":     "",
		"shoppingCart.actions.fcscounter":              "",
		"shoppingCart.actions.fcsdata":                 "",
	}

	env, err := c.postEnvelope(ctx, "/shop/bagx/checkout_now", map[string]string{
		"_a": "checkout",
		"_m": "shoppingCart.actions",
	}, form)
	if err != nil {
		return "", nil, err
	}

	signinURL := env.Head.Data.URL
	parsed, err := url.Parse(signinURL)
	if err != nil {
		return "", nil, &webshop.ProtocolError{
			URL:    signinURL,
			Reason: "sign-in url does not parse",
		}
	}

	params := map[string]string{}
	for key, values := range parsed.Query() {
		params[key] = values[0]
	}
	c.secureHost = parsed.Scheme + "://" + parsed.Host

	slog.DebugContext(ctx, "learned secure host", "host", c.secureHost)
	return signinURL, params, nil
}

// guestDeviceID renders the browser fingerprint field the sign-in
// form expects, randomizing the reported browser versions.
func guestDeviceID(secureHost string) string {
	now := time.Now()
	geckoVersion, _ := random.IntRange(100, 109)
	firefoxVersion, _ := random.IntRange(100, 117)

	hostname := strings.TrimPrefix(secureHost, "https://")
	fields := fmt.Sprintf(
		"TF1;015;;;;;;;;;;;;;;;;;;;;;;Mozilla;Netscape;5.0 (Macintosh);20100101;undefined;true;Intel Mac OS X 10.15;true;MacIntel;undefined;"+
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:%d.0) Gecko/20100101 Firefox/%d.0;"+
			"en-US;undefined;%s;undefined;undefined;undefined;undefined;false;false;%d;8;6/7/2005, 9:33:44 PM;2560;1440;;;;;;;;-480;-480;"+
			"%d/%d/%d, %s;30;2560;1415;0;25;;;;;;;;;;;;;;;;;;;25;",
		geckoVersion,
		firefoxVersion,
		hostname,
		now.UnixMilli(),
		int(now.Month()), now.Day(), now.Year(),
		now.Format("3:04:05 PM"),
	)

	segments := strings.Split(fields, ";")
	for i, segment := range segments {
		segments[i] = url.QueryEscape(segment)
	}
	return strings.Join(segments, ";")
}

func (c *Client) signIn(ctx context.Context, params map[string]string) (envelope, error) {
	slog.InfoContext(ctx, "signing in as guest")

	query := map[string]string{
		"_a": "guestLogin",
		"_m": "signIn.guestLogin",
	}
	for key, value := range params {
		query[key] = value
	}

	form := map[string]string{
		"signIn.consentOverlay.policiesAccepted":      "true",
		"signIn.consentOverlay.dataHandleByApple":     "true",
		"signIn.consentOverlay.dataOutSideMyCountry":  "true",
		"signIn.guestLogin.deviceID":                  guestDeviceID(c.secureHost),
	}

	env, err := c.postEnvelope(ctx, c.secureHost+"/shop/signInx", query, form)
	if err != nil {
		return envelope{}, err
	}

	// the sign-in answer points at a follow-up submission whose
	// arguments the server chose; a 302 here is the session becoming
	// authenticated
	return c.postChecked(ctx, env.Head.Data.URL, nil, env.Head.Data.Args, 302)
}

func (c *Client) selectDeliveryMethod(ctx context.Context) error {
	slog.InfoContext(ctx, "selecting store pickup")

	_, err := c.postChecked(ctx, c.secureHost+"/shop/checkoutx", map[string]string{
		"_a": "selectFulfillmentLocationAction",
		"_m": "checkout.fulfillment.fulfillmentOptions",
	}, map[string]string{
		"checkout.fulfillment.fulfillmentOptions.selectFulfillmentLocation": "RETAIL",
	}, 200)
	return err
}
