// Package pickup polls the storefront's fulfillment endpoint for
// store pickup availability, alerts on stock and, when ordering is
// enabled, routes available offers to pooled checkout sessions. The
// first placed order stops the whole run.
package pickup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"pickupbot/lib/stockstore"
	"pickupbot/lib/webshop"
	"pickupbot/services/checkout"
	"pickupbot/services/notify"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/pickup")

const storefrontHost = "https://www.apple.com"

// Orderer places one order on an already established session.
type Orderer interface {
	PlaceOrder(ctx context.Context, intent checkout.OrderIntent) (string, error)
}

// SessionSource hands out established sessions, one per caller.
type SessionSource interface {
	Get(ctx context.Context) (Orderer, error)
}

// PoolSource adapts the checkout session pool to SessionSource.
type PoolSource struct {
	Pool *checkout.Pool
}

func (p PoolSource) Get(ctx context.Context) (Orderer, error) {
	return p.Pool.Get(ctx)
}

// Query is the immutable shape of one monitoring run.
type Query struct {
	Country      string
	Models       []string
	Location     string
	PostalCode   string
	State        string
	StoreFilters []string
}

type RunOptions struct {
	Query    Query
	Interval time.Duration
	// alerts per placed order
	NoticeCount int

	Order    bool
	Intent   checkout.OrderIntent
	Sessions SessionSource

	// 0 means poll until stopped; tests bound the loop
	MaxCycles int
}

type Monitor struct {
	session    *webshop.Session
	dispatcher *notify.Dispatcher
	history    *stockstore.Store

	placed atomic.Bool
	cancel context.CancelFunc
}

type MonitorOption func(*Monitor)

// WithSession substitutes the storefront session, used by tests.
func WithSession(s *webshop.Session) MonitorOption {
	return func(m *Monitor) {
		m.session = s
	}
}

// WithHistory records every parsed offer into the given store.
func WithHistory(store stockstore.Store) MonitorOption {
	return func(m *Monitor) {
		s := store
		m.history = &s
	}
}

func NewMonitor(dispatcher *notify.Dispatcher, opts ...MonitorOption) (*Monitor, error) {
	m := &Monitor{dispatcher: dispatcher}
	for _, opt := range opts {
		opt(m)
	}
	if m.session == nil {
		session, err := webshop.NewSession(storefrontHost, nil)
		if err != nil {
			return nil, err
		}
		m.session = session
	}
	return m, nil
}

// Placed reports whether this run placed an order.
func (m *Monitor) Placed() bool {
	return m.placed.Load()
}

// Stop makes the run loop exit at its next cancellation check.
// In-flight network calls are allowed to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Run polls until stopped or until an order is placed.
func (m *Monitor) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	defer cancel()

	if opts.Interval == 0 {
		opts.Interval = time.Second * 5
	}
	if opts.NoticeCount == 0 {
		opts.NoticeCount = 1
	}
	if opts.Order && opts.Sessions == nil {
		return errors.New("ordering enabled without a session source")
	}

	slog.InfoContext(
		ctx, "monitoring pickup availability",
		"models", strings.Join(opts.Query.Models, ","),
		"interval", opts.Interval,
		"order", opts.Order,
	)

	cycles := 0
	for ctx.Err() == nil {
		if opts.MaxCycles > 0 && cycles >= opts.MaxCycles {
			return nil
		}
		cycles++

		skipWait := m.cycle(ctx, opts)
		if m.placed.Load() {
			return nil
		}
		if skipWait {
			continue
		}

		select {
		case <-ctx.Done():
		case <-time.After(opts.Interval):
		}
	}
	return nil
}

// cycle runs one poll. It reports whether the wait before the next
// cycle should be skipped: any error recovers quickly, and so does a
// store that offered no usable pickup window.
func (m *Monitor) cycle(ctx context.Context, opts RunOptions) (skipWait bool) {
	ctx, span := tracer.Start(ctx, "cycle")
	defer span.End()

	data, err := m.fetchInventory(ctx, opts.Query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch inventory")
		slog.ErrorContext(ctx, "failed to retrieve inventory", "err", err)
		return true
	}

	offers, err := parseOffers(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse inventory")
		slog.ErrorContext(ctx, "failed to parse inventory", "err", err)
		return true
	}
	offers = filterByStore(offers, opts.Query.StoreFilters)

	if len(offers) == 0 {
		slog.WarnContext(ctx, "no matching stores found")
		return false
	}

	for _, offer := range offers {
		slog.InfoContext(ctx, offer.Describe(), "status", offer.Status)
	}
	m.recordHistory(ctx, offers)

	available := availableOffers(offers)
	if len(available) == 0 {
		return false
	}

	if m.dispatcher != nil && m.dispatcher.Channels() > 0 {
		m.alertAvailability(ctx, available)
	}

	if !opts.Order {
		return false
	}

	for _, offer := range available {
		orderNumber, err := m.attemptOrder(ctx, opts, offer)
		if errors.Is(err, checkout.ErrNoPickupWindow) {
			skipWait = true
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "order attempt")
			slog.ErrorContext(ctx, "order attempt failed", "store", offer.StoreNumber, "err", err)
			return true
		}

		m.placed.Store(true)
		slog.InfoContext(ctx, "order placed, shutting down", "order_number", orderNumber)
		if m.dispatcher != nil {
			m.dispatcher.RepeatPush(
				ctx,
				"Order placed",
				fmt.Sprintf("Order %s placed. Check your email for details.", orderNumber),
				opts.NoticeCount,
			)
		}
		m.Stop()
		return false
	}
	return skipWait
}

// attemptOrder binds the offer's store to the order intent and runs
// the order stages on a pooled session. The session is used once and
// discarded regardless of outcome.
func (m *Monitor) attemptOrder(ctx context.Context, opts RunOptions, offer Offer) (string, error) {
	session, err := opts.Sessions.Get(ctx)
	if err != nil {
		return "", err
	}

	intent := opts.Intent
	intent.StoreNumber = offer.StoreNumber
	intent.State = offer.State
	intent.City = offer.City
	intent.District = offer.District

	return session.PlaceOrder(ctx, intent)
}

func (m *Monitor) fetchInventory(ctx context.Context, query Query) ([]byte, error) {
	params := map[string]string{
		"searchNearby": "true",
		"pl":           "true",
		"mts.0":        "regular",
		"mts.1":        "compact",
	}
	for i, model := range query.Models {
		params[fmt.Sprintf("parts.%d", i)] = model
	}
	if query.Location != "" {
		params["location"] = query.Location
	}
	if query.PostalCode != "" {
		params["postalCode"] = query.PostalCode
	}
	if query.State != "" {
		params["state"] = query.State
	}

	res, err := m.session.Get(
		ctx,
		fmt.Sprintf("/%s/shop/fulfillment-messages", query.Country),
		params,
	)
	if err != nil {
		return nil, err
	}
	if err := webshop.EnsureStatus(res, 200); err != nil {
		return nil, err
	}
	return res.Body(), nil
}

func (m *Monitor) recordHistory(ctx context.Context, offers []Offer) {
	if m.history == nil {
		return
	}
	now := time.Now()
	observations := make([]stockstore.Observation, len(offers))
	for i, offer := range offers {
		observations[i] = stockstore.Observation{
			Time:        now,
			StoreNumber: offer.StoreNumber,
			StoreName:   offer.StoreName,
			PartNumber:  offer.PartNumber,
			Status:      offer.Status,
			Quote:       offer.Quote,
		}
	}
	err := m.history.Record(ctx, observations)
	if err != nil {
		slog.WarnContext(ctx, "failed to record availability history", "err", err)
	}
}

func (m *Monitor) alertAvailability(ctx context.Context, available []Offer) {
	lines := make([]string, len(available))
	for i, offer := range available {
		lines[i] = offer.Describe()
	}
	m.dispatcher.Push(
		ctx,
		"Pickup availability",
		strings.Join(lines, "\r\n"),
		"pickup_availability",
		time.Minute,
	)
}
