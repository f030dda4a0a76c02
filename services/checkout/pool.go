package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
)

type pooledSession struct {
	client    *Client
	createdAt time.Time
}

// PoolOptions tunes the session pool. The zero value of every field
// falls back to the production defaults; tests shrink the intervals
// and cap the establishment retries.
type PoolOptions struct {
	// how long an established session stays usable
	TTL time.Duration
	// sessions are dropped this long before the ttl actually runs out
	RefreshMargin time.Duration
	// how many ready sessions the pool tries to hold
	Target int
	// how often the maintenance loop runs
	Cadence time.Duration
	// how long Get waits between checks while the pool is empty
	HandoutPoll time.Duration
	// wait between failed establishment attempts
	RetryDelay time.Duration
	// 0 means retry establishment forever
	EstablishRetryLimit int

	// Establish substitutes session establishment, used by tests.
	Establish func(ctx context.Context, intent OrderIntent) (*Client, error)
}

// Pool holds sessions already advanced through the establishment
// stages so an order can be placed the moment stock appears. Sessions
// are handed out exactly once and never returned.
type Pool struct {
	opts PoolOptions

	mu    sync.Mutex
	ready []pooledSession

	cancel context.CancelFunc
	done   chan struct{}
}

func NewPool(opts PoolOptions) *Pool {
	if opts.TTL == 0 {
		opts.TTL = time.Minute * 30
	}
	if opts.RefreshMargin == 0 {
		opts.RefreshMargin = time.Minute * 5
	}
	if opts.Target == 0 {
		opts.Target = 3
	}
	if opts.Cadence == 0 {
		opts.Cadence = time.Second * 30
	}
	if opts.HandoutPoll == 0 {
		opts.HandoutPoll = time.Millisecond * 100
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Establish == nil {
		opts.Establish = func(ctx context.Context, intent OrderIntent) (*Client, error) {
			client, err := NewClient(intent.Country)
			if err != nil {
				return nil, err
			}
			err = client.Establish(ctx, intent)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}
	return &Pool{opts: opts}
}

// Start launches background maintenance for the given intent.
func (p *Pool) Start(ctx context.Context, intent OrderIntent) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.maintain(ctx, intent)
}

// Stop halts maintenance and waits for the loop to exit. Sessions
// already handed out are unaffected.
func (p *Pool) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Get blocks until a fresh session exists, then removes and returns
// it. The same session is never offered twice.
func (p *Pool) Get(ctx context.Context) (*Client, error) {
	maxAge := p.opts.TTL - p.opts.RefreshMargin
	for {
		p.mu.Lock()
		for len(p.ready) > 0 {
			session := p.ready[0]
			p.ready = p.ready[1:]
			// the sweep only runs on the maintenance cadence; a session
			// may have aged out in between
			if time.Since(session.createdAt) >= maxAge {
				continue
			}
			p.mu.Unlock()
			return session.client, nil
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.opts.HandoutPoll):
		}
	}
}

// Size reports how many ready sessions the pool currently holds.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ready)
}

func (p *Pool) maintain(ctx context.Context, intent OrderIntent) {
	defer close(p.done)
	slog.InfoContext(ctx, "maintaining checkout session pool", "target", p.opts.Target)

	maxAge := p.opts.TTL - p.opts.RefreshMargin
	for {
		p.sweep(maxAge)

		available := p.Size()
		slog.InfoContext(ctx, "ready checkout sessions", "count", available)

		// establishment happens outside the pool lock, one session at
		// a time to keep load against the storefront bounded
		for i := available; i < p.opts.Target; i++ {
			session, err := p.establish(ctx, intent)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.ErrorContext(ctx, "abandoning session establishment", "err", err)
				break
			}
			p.mu.Lock()
			p.ready = append(p.ready, session)
			p.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.opts.Cadence):
		}
	}
}

func (p *Pool) sweep(maxAge time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.ready[:0]
	for _, session := range p.ready {
		if time.Since(session.createdAt) >= maxAge {
			continue
		}
		kept = append(kept, session)
	}
	p.ready = kept
}

// establish creates one fresh session, retrying on failure:
// establishment failures are expected to be transient (rate limiting,
// upstream hiccups) and sessions are cheap to re-attempt.
func (p *Pool) establish(ctx context.Context, intent OrderIntent) (pooledSession, error) {
	ctx, span := tracer.Start(ctx, "pool:establish")
	defer span.End()

	attempts := 0
	for {
		createdAt := time.Now()
		client, err := p.opts.Establish(ctx, intent)
		if err == nil {
			return pooledSession{client: client, createdAt: createdAt}, nil
		}
		span.RecordError(err)
		slog.WarnContext(ctx, "session establishment failed", "err", err)

		attempts++
		if p.opts.EstablishRetryLimit > 0 && attempts >= p.opts.EstablishRetryLimit {
			span.SetStatus(codes.Error, "establishment retry limit hit")
			return pooledSession{}, errors.New("session establishment retry limit hit")
		}

		select {
		case <-ctx.Done():
			return pooledSession{}, ctx.Err()
		case <-time.After(p.opts.RetryDelay):
		}
	}
}
