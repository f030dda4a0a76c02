package checkout

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"pickupbot/lib/telemetry"
	"pickupbot/lib/webshop"

	"github.com/stretchr/testify/require"
)

// storefront is an in-memory rendition of the checkout endpoints,
// answering each stage the way the real storefront does.
type storefront struct {
	t *testing.T

	mu              sync.Mutex
	actions         []string
	processAttempts int
	selectedStore   string
	billingOption   string
}

func (s *storefront) page(w http.ResponseWriter, initData string) {
	fmt.Fprintf(w, `<html>
<head><meta name="x-aos-stk" content="stk"></head>
<body><script id="init_data" type="application/json">%s</script></body>
</html>`, initData)
}

func (s *storefront) envelope(w http.ResponseWriter, status int, url string, args map[string]string, body string) {
	w.Header().Set("Content-Type", "application/json")
	if body == "" {
		body = "{}"
	}
	argsJSON := "{"
	first := true
	for key, value := range args {
		if !first {
			argsJSON += ","
		}
		first = false
		argsJSON += fmt.Sprintf("%q: %q", key, value)
	}
	argsJSON += "}"
	fmt.Fprintf(w, `{"head": {"status": "%d", "data": {"url": %q, "args": %s}}, "body": %s}`,
		status, url, argsJSON, body)
}

func (s *storefront) record(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
}

const timeSlotBody = `{
	"checkout": {
		"fulfillment": {
			"pickupTab": {
				"pickup": {
					"timeSlot": {
						"dateTimeSlots": {
							"d": {
								"pickUpDates": [{"date": "2026-08-31", "dayOfWeek": "Monday"}],
								"timeSlotWindows": [
									{"all": [{"SlotId": "5", "Label": "11:00 - 11:15", "checkInStart": "11:00", "checkInEnd": "11:15", "signKey": "sk", "isRestricted": false}]}
								],
								"dayRadio": "duration"
							}
						}
					}
				}
			}
		}
	}
}`

func (s *storefront) handler(baseURL func() string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Query().Get("_a")

		switch {
		case r.URL.Path == "/shop/beacon/atb":
			http.SetCookie(w, &http.Cookie{Name: "as_atb", Value: "1.0|2026|token123", Path: "/"})

		case r.URL.Path == "/shop/buy-iphone/iphone-16-pro/MYTP3CH/A":
			s.record("add_to_cart")
			require.Equal(s.t, "token123", r.URL.Query().Get("atbtoken"))

		case r.URL.Path == "/shop/bag":
			s.page(w, `{"meta": {"h": {"x-aos-stk": "stk"}}, "shoppingCart": {"items": {"c": ["item1"]}}}`)

		case r.URL.Path == "/shop/bagx/checkout_now":
			s.record("checkout_now")
			s.envelope(w, 302, baseURL()+"/shop/signin?ssi=abc", nil, "")

		case r.URL.Path == "/shop/signin":
			s.page(w, `{"meta": {"h": {"x-aos-stk": "stk"}}}`)

		case r.URL.Path == "/shop/signInx":
			s.record("sign_in")
			require.Equal(s.t, "abc", r.URL.Query().Get("ssi"))
			require.NotEmpty(s.t, r.FormValue("signIn.guestLogin.deviceID"))
			s.envelope(w, 200, baseURL()+"/shop/checkout/start", map[string]string{"token": "t1"}, "")

		case r.URL.Path == "/shop/checkout/start":
			s.record("sign_in_follow")
			require.Equal(s.t, "t1", r.FormValue("token"))
			s.envelope(w, 302, baseURL()+"/shop/checkout", nil, "")

		case r.URL.Path == "/shop/checkout":
			s.page(w, `{"meta": {"h": {"x-aos-stk": "stk"}}}`)

		case r.URL.Path == "/shop/checkoutx" && action == "selectFulfillmentLocationAction":
			s.record("select_pickup")
			s.envelope(w, 200, "", nil, "")

		case r.URL.Path == "/shop/checkoutx" && action == "search":
			s.record("store_search")
			s.mu.Lock()
			s.selectedStore = r.FormValue("checkout.fulfillment.pickupTab.pickup.storeLocator.selectStore")
			s.mu.Unlock()
			s.envelope(w, 200, "", nil, timeSlotBody)

		case r.URL.Path == "/shop/checkoutx" && action == "continueFromFulfillmentToPickupContact":
			s.record("pickup_contact")
			require.Equal(s.t, "5", r.FormValue("checkout.fulfillment.pickupTab.pickup.timeSlot.dateTimeSlots.timeSlotId"))
			s.envelope(w, 200, "", nil, "")

		case r.URL.Path == "/shop/checkoutx" && action == "continueFromPickupContactToBilling":
			s.record("billing")
			require.Equal(s.t, "none", r.FormValue("checkout.pickupContact.eFapiaoSelector.selectFapiao"))
			s.envelope(w, 200, "", nil, "")

		case r.URL.Path == "/shop/checkoutx/billing":
			s.record("billing_" + action)
			s.mu.Lock()
			s.billingOption = r.FormValue("checkout.billing.billingOptions.selectBillingOption")
			s.mu.Unlock()
			s.envelope(w, 200, "", nil, "")

		case r.URL.Path == "/shop/checkoutx" && action == "continueFromReviewToProcess":
			s.record("process")
			s.mu.Lock()
			s.processAttempts++
			attempts := s.processAttempts
			s.mu.Unlock()
			if attempts < 2 {
				// still being worked on, the client retries in place
				s.envelope(w, 200, "", nil, "")
				return
			}
			s.envelope(w, 302, "/shop/checkout/thankyou", nil, "")

		case r.URL.Path == "/shop/checkoutx/statusX" && action == "checkStatus":
			s.record("check_status")
			s.envelope(w, 302, "", nil, "")

		case r.URL.Path == "/shop/checkout/thankyou":
			s.page(w, `{"meta": {"h": {"x-aos-stk": "stk"}}, "thankYouInterstitial": {"d": {"orderNumber": "W8675309"}}}`)

		default:
			s.t.Errorf("unexpected request: %s %s (_a=%s)", r.Method, r.URL.Path, action)
			http.NotFound(w, r)
		}
	})
}

func TestEstablishAndPlaceOrder(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/checkout")
	defer cleanup()

	front := &storefront{t: t}
	var server *httptest.Server
	server = httptest.NewServer(front.handler(func() string { return server.URL }))
	defer server.Close()

	session, err := webshop.NewSession(server.URL, nil)
	require.NoError(t, err)
	client, err := NewClient("cn",
		WithSession(session),
		WithRetryDelay(time.Millisecond),
		WithConfirmRetryLimit(5),
	)
	require.NoError(t, err)

	intent := OrderIntent{
		Model:     "MYTP3CH/A",
		ModelCode: "16-pro",
		Country:   "cn",
		Delivery: DeliveryProfile{
			FirstName:     "三",
			LastName:      "张",
			Email:         "san.zhang@example.com",
			Phone:         "13800000000",
			NationalID:    "110101199003070000",
			PaymentMethod: "ALIPAY",
			Installments:  1,
		},
	}

	err = client.Establish(context.Background(), intent)
	require.NoError(t, err)

	intent.StoreNumber = "R389"
	intent.State = "上海"
	intent.City = "上海"
	intent.District = "黄浦区"

	orderNumber, err := client.PlaceOrder(context.Background(), intent)
	require.NoError(t, err)
	require.Equal(t, "W8675309", orderNumber)

	front.mu.Lock()
	defer front.mu.Unlock()
	require.Equal(t, "R389", front.selectedStore)
	require.Equal(t, "ALIPAY", front.billingOption)
	require.Equal(t, 2, front.processAttempts)
	require.Contains(t, front.actions, "billing_selectBillingOptionAction")
	require.Contains(t, front.actions, "billing_continueFromBillingToReview")
}

func TestPlaceOrderNoWindow(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/checkout")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// store search without any pickup time slot
		fmt.Fprint(w, `{"head": {"status": "200", "data": {}}, "body": {"checkout": {"fulfillment": {"pickupTab": {"pickup": {}}}}}}`)
	}))
	defer server.Close()

	session, err := webshop.NewSession(server.URL, nil)
	require.NoError(t, err)
	client, err := NewClient("cn", WithSession(session), WithRetryDelay(time.Millisecond))
	require.NoError(t, err)
	client.secureHost = server.URL

	_, err = client.PlaceOrder(context.Background(), OrderIntent{Model: "MYTP3CH/A", Country: "cn", StoreNumber: "R389"})
	require.ErrorIs(t, err, ErrNoPickupWindow)
}
