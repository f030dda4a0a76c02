// Package notify fans human-readable alerts out to whatever channels
// the operator configured. Channels act independently: one failing
// does not stop the others, and each keeps its own rate limit record.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/notify")

type Notifier interface {
	Name() string
	Push(ctx context.Context, title, content string) error
}

type Dispatcher struct {
	notifiers []Notifier
	lastPush  *expirable.LRU[string, time.Time]
}

func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		lastPush:  expirable.NewLRU[string, time.Time](2048, nil, 0),
	}
}

func (d *Dispatcher) Channels() int {
	return len(d.notifiers)
}

// Push delivers to every channel whose (channel, key) pair has not
// fired within minInterval. A suppressed push is dropped, not queued.
// Delivery failures are logged and do not update the rate limit
// record, so the next attempt goes through.
func (d *Dispatcher) Push(ctx context.Context, title, content, key string, minInterval time.Duration) {
	ctx, span := tracer.Start(ctx, "Push")
	defer span.End()

	for _, notifier := range d.notifiers {
		dedupeKey := notifier.Name() + ":" + key
		if last, ok := d.lastPush.Get(dedupeKey); ok && minInterval > 0 && time.Since(last) < minInterval {
			slog.DebugContext(
				ctx, "pushing too frequently, alert dropped",
				"channel", notifier.Name(),
				"key", key,
			)
			continue
		}

		err := notifier.Push(ctx, title, content)
		if err != nil {
			span.RecordError(err)
			slog.ErrorContext(
				ctx, "alert delivery failed",
				"channel", notifier.Name(),
				"err", err,
			)
			continue
		}
		d.lastPush.Add(dedupeKey, time.Now())
	}
}

// RepeatPush delivers the same alert several times on every channel,
// bypassing rate limiting. Used for the one alert that must not be
// missed: a placed order.
func (d *Dispatcher) RepeatPush(ctx context.Context, title, content string, count int) {
	ctx, span := tracer.Start(ctx, "RepeatPush")
	defer span.End()

	for i := 0; i < count; i++ {
		for _, notifier := range d.notifiers {
			err := notifier.Push(ctx, title, content)
			if err != nil {
				span.RecordError(err)
				slog.ErrorContext(
					ctx, "alert delivery failed",
					"channel", notifier.Name(),
					"err", err,
				)
			}
		}
	}
}
