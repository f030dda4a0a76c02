package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pickupbot/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type countingEstablisher struct {
	mu   sync.Mutex
	made int
	fail int
}

func (e *countingEstablisher) establish(ctx context.Context, intent OrderIntent) (*Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail > 0 {
		e.fail--
		return nil, errors.New("storefront said no")
	}
	e.made++
	return &Client{country: intent.Country}, nil
}

func waitForSize(t *testing.T, pool *Pool, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second * 5)
	for pool.Size() != want {
		if time.Now().After(deadline) {
			t.Fatalf("pool never reached %d sessions, has %d", want, pool.Size())
		}
		time.Sleep(time.Millisecond * 10)
	}
}

func TestPoolReachesTarget(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/checkout")
	defer cleanup()

	establisher := &countingEstablisher{}
	pool := NewPool(PoolOptions{
		Target:    3,
		Cadence:   time.Millisecond * 10,
		Establish: establisher.establish,
	})
	pool.Start(context.Background(), OrderIntent{Country: "cn"})
	defer pool.Stop()

	waitForSize(t, pool, 3)
	require.Equal(t, 3, establisher.made)
}

func TestPoolSingleHandout(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/checkout")
	defer cleanup()

	establisher := &countingEstablisher{}
	pool := NewPool(PoolOptions{
		Target:      2,
		Cadence:     time.Hour,
		HandoutPoll: time.Millisecond,
		Establish:   establisher.establish,
	})
	pool.Start(context.Background(), OrderIntent{Country: "cn"})
	defer pool.Stop()

	waitForSize(t, pool, 2)

	first, err := pool.Get(context.Background())
	require.NoError(t, err)
	second, err := pool.Get(context.Background())
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Equal(t, 0, pool.Size())

	// nothing left and the next maintenance pass is an hour away
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
	defer cancel()
	_, err = pool.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolSweepsExpiredSessions(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/checkout")
	defer cleanup()

	establisher := &countingEstablisher{}
	pool := NewPool(PoolOptions{
		// sessions age out almost immediately
		TTL:           time.Millisecond * 30,
		RefreshMargin: time.Millisecond * 10,
		Target:        1,
		Cadence:       time.Millisecond * 10,
		Establish:     establisher.establish,
	})
	pool.Start(context.Background(), OrderIntent{Country: "cn"})
	defer pool.Stop()

	deadline := time.Now().Add(time.Second * 5)
	for {
		establisher.mu.Lock()
		made := establisher.made
		establisher.mu.Unlock()
		if made >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sessions were never replaced, made %d", made)
		}
		time.Sleep(time.Millisecond * 10)
	}
}

func TestPoolGetNeverHandsOutStaleSessions(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/checkout")
	defer cleanup()

	// no maintenance running: only Get itself enforces freshness here
	pool := NewPool(PoolOptions{HandoutPoll: time.Millisecond})
	stale := pooledSession{client: &Client{}, createdAt: time.Now().Add(-time.Hour)}
	fresh := pooledSession{client: &Client{country: "cn"}, createdAt: time.Now()}
	pool.mu.Lock()
	pool.ready = []pooledSession{stale, fresh}
	pool.mu.Unlock()

	got, err := pool.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, fresh.client, got)
	require.Equal(t, 0, pool.Size())

	pool.mu.Lock()
	pool.ready = []pooledSession{stale}
	pool.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
	defer cancel()
	_, err = pool.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolEstablishRetryLimit(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/checkout")
	defer cleanup()

	establisher := &countingEstablisher{fail: 2}
	pool := NewPool(PoolOptions{
		Target:              1,
		Cadence:             time.Millisecond * 10,
		RetryDelay:          time.Millisecond,
		EstablishRetryLimit: 5,
		Establish:           establisher.establish,
	})
	pool.Start(context.Background(), OrderIntent{Country: "cn"})
	defer pool.Stop()

	// the two failures are retried through and a session still lands
	waitForSize(t, pool, 1)
	require.Equal(t, 1, establisher.made)
}
