// Package checkout drives a single storefront session through the
// retailer's staged checkout flow: cart, guest sign-in and delivery
// method once per session, then the store/window/contact/payment/
// review stages per order attempt. Navigation after sign-in follows
// server-issued urls carried in response envelopes rather than fixed
// paths.
package checkout

import (
	"context"
	"fmt"
	"pickupbot/lib/webshop"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/checkout")

const storefrontHost = "https://www.apple.com"

// DeliveryProfile identifies the person picking the order up and how
// they pay. Supplied once, reused across attempts.
type DeliveryProfile struct {
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	NationalID    string
	PaymentMethod string
	Installments  int
}

// OrderIntent is the one logical purchase a monitoring run is trying
// to make. Store fields are filled in once an offer is selected.
type OrderIntent struct {
	Model          string
	ModelCode      string
	Country        string
	AccessoryType  string
	AccessoryModel string

	StoreNumber string
	State       string
	City        string
	District    string

	Delivery DeliveryProfile
}

type Client struct {
	session    *webshop.Session
	country    string
	secureHost string

	retryDelay        time.Duration
	confirmRetryLimit int
}

type Option func(*Client)

// WithConfirmRetryLimit bounds the in-place retries of the processing
// confirmation steps and the completion poll. Zero means unbounded,
// which is the production behavior.
func WithConfirmRetryLimit(n int) Option {
	return func(c *Client) {
		c.confirmRetryLimit = n
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithSession substitutes the storefront session, used by tests to
// point the client at a fixture server.
func WithSession(s *webshop.Session) Option {
	return func(c *Client) {
		c.session = s
	}
}

func NewClient(country string, opts ...Option) (*Client, error) {
	// the staged form flow below encodes the mainland storefront's
	// field layout (province/city/district tabs, national id, fapiao)
	if country != "cn" {
		return nil, fmt.Errorf("unsupported storefront country: %q", country)
	}

	c := &Client{
		country:    country,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.session == nil {
		session, err := webshop.NewSession(storefrontHost+".cn", map[string]string{
			"Referer": fmt.Sprintf("%s/%s/shop/bag", storefrontHost, country),
		})
		if err != nil {
			return nil, err
		}
		c.session = session
	}
	return c, nil
}

// postEnvelope submits a checkout form and decodes the status
// envelope it answers with.
func (c *Client) postEnvelope(ctx context.Context, url string, query, form map[string]string) (envelope, error) {
	res, err := c.session.PostForm(ctx, url, query, form)
	if err != nil {
		return envelope{}, err
	}
	env, err := decodeEnvelope(res)
	if err != nil {
		return envelope{}, &webshop.ProtocolError{
			URL:    res.Request.URL,
			Status: res.StatusCode(),
			Reason: "response is not a status envelope",
		}
	}
	return env, nil
}

// postChecked is postEnvelope plus a strict logical status assertion:
// a mismatch fails the attempt.
func (c *Client) postChecked(ctx context.Context, url string, query, form map[string]string, want int) (envelope, error) {
	env, err := c.postEnvelope(ctx, url, query, form)
	if err != nil {
		return envelope{}, err
	}
	if int(env.Head.Status) != want {
		return envelope{}, &webshop.ProtocolError{
			URL:    url,
			Status: int(env.Head.Status),
			Reason: fmt.Sprintf("logical status %d where %d was required", env.Head.Status, want),
		}
	}
	return env, nil
}

// postUntilStatus retries the same submission in place until the
// envelope carries the wanted logical status. The two processing
// confirmation steps answer non-302 while the order is still being
// worked on, which is expected and not a protocol error.
func (c *Client) postUntilStatus(ctx context.Context, url string, query, form map[string]string, want int) (envelope, error) {
	ctx, span := tracer.Start(ctx, "postUntilStatus")
	defer span.End()

	attempts := 0
	for {
		env, err := c.postEnvelope(ctx, url, query, form)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "confirmation submit failed")
			return envelope{}, err
		}
		if int(env.Head.Status) == want {
			return env, nil
		}

		attempts++
		if c.confirmRetryLimit > 0 && attempts >= c.confirmRetryLimit {
			span.SetStatus(codes.Error, "confirmation retry limit hit")
			return envelope{}, &webshop.ProtocolError{
				URL:    url,
				Status: int(env.Head.Status),
				Reason: fmt.Sprintf("status %d never became %d", env.Head.Status, want),
			}
		}

		select {
		case <-ctx.Done():
			return envelope{}, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}
