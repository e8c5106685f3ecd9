package vectorstore

import (
	"context"
	"sync"
	"time"

	"github.com/codeweaver/core/internal/coreerr"
	"github.com/codeweaver/core/internal/stats"
)

// BreakerState is one of the three states in §4.5's circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "CLOSED"
	StateOpen     BreakerState = "OPEN"
	StateHalfOpen BreakerState = "HALF_OPEN"
)

// CircuitBreaker implements §4.5's exact transition policy:
//
//	CLOSED -> OPEN after 3 consecutive failures of class
//	  {ConnectionError, TimeoutError, 5xx}.
//	OPEN -> HALF_OPEN after a 30s cooldown.
//	HALF_OPEN -> CLOSED after 1 successful operation;
//	HALF_OPEN -> OPEN on any failure.
//
// Authentication errors and 4xx client errors never count toward opening
// (callers signal this by only marking Retriable errors as breaker
// failures; see RecordResult).
type CircuitBreaker struct {
	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	cooldown            time.Duration
	failureThreshold    int
	stats               *stats.Statistics
}

// NewCircuitBreaker builds a breaker starting CLOSED.
func NewCircuitBreaker(st *stats.Statistics) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		cooldown:         30 * time.Second,
		failureThreshold: 3,
		stats:            st,
	}
}

// State returns the current state, first promoting OPEN to HALF_OPEN if
// the cooldown has elapsed.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybePromoteToHalfOpenLocked()
	return b.state
}

func (b *CircuitBreaker) maybePromoteToHalfOpenLocked() {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
	}
}

// Allow reports whether a call may proceed: true in CLOSED and HALF_OPEN,
// false in OPEN. HALF_OPEN does not limit how many calls proceed; the
// first result recorded in HALF_OPEN decides the next transition.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybePromoteToHalfOpenLocked()
	return b.state != StateOpen
}

// RecordResult updates breaker state after a guarded call. countsTowardOpen
// should be true only for ConnectionError/TimeoutError/5xx-class failures
// (err != nil); auth and 4xx errors pass err != nil but
// countsTowardOpen == false, per §4.5.
func (b *CircuitBreaker) RecordResult(err error, countsTowardOpen bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybePromoteToHalfOpenLocked()

	if err == nil {
		b.consecutiveFailures = 0
		if b.state == StateHalfOpen {
			b.state = StateClosed
			b.stats.VectorStore.BreakerClosed.Add(1)
		}
		return
	}

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = time.Now()
		b.stats.VectorStore.BreakerOpened.Add(1)
		return
	}

	if !countsTowardOpen {
		return
	}
	b.consecutiveFailures++
	if b.state == StateClosed && b.consecutiveFailures >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
		b.stats.VectorStore.BreakerOpened.Add(1)
	}
}

// Guarded decorates any VectorStore with the circuit breaker (§4.5: "all
// operations ... guarded by a circuit breaker"). countsTowardOpen
// classifies an error from inner as counting toward the OPEN transition;
// the default classifier treats coreerr.IsRetriable errors (the
// ConnectionError/TimeoutError/5xx class, §7) as counting, and anything
// else (auth, 4xx, validation) as not counting.
type Guarded struct {
	inner   VectorStore
	breaker *CircuitBreaker
}

// NewGuarded wraps inner with a fresh CircuitBreaker.
func NewGuarded(inner VectorStore, st *stats.Statistics) *Guarded {
	return &Guarded{inner: inner, breaker: NewCircuitBreaker(st)}
}

// Breaker exposes the underlying breaker, e.g. for the FailoverManager's
// monitor loop (§4.6) and the query pipeline's "healthy" check (§4.9).
func (g *Guarded) Breaker() *CircuitBreaker { return g.breaker }

func countsTowardOpen(err error) bool {
	return err != nil && coreerr.IsRetriable(err)
}

func (g *Guarded) guard(op func() error) error {
	if !g.breaker.Allow() {
		return coreerr.New(coreerr.KindCircuitBreakerOpen, "vectorstore.guarded", errBreakerOpen)
	}
	err := op()
	g.breaker.RecordResult(err, countsTowardOpen(err))
	return err
}

func (g *Guarded) Initialize(ctx context.Context) error {
	return g.guard(func() error { return g.inner.Initialize(ctx) })
}

func (g *Guarded) EnsureCollection(ctx context.Context, name string, dense, sparse *VectorConfig) error {
	return g.guard(func() error { return g.inner.EnsureCollection(ctx, name, dense, sparse) })
}

func (g *Guarded) Upsert(ctx context.Context, collection string, points []Point) error {
	return g.guard(func() error {
		err := g.inner.Upsert(ctx, collection, points)
		if err == nil {
			g.breaker.stats.VectorStore.Upserts.Add(1)
		}
		return err
	})
}

func (g *Guarded) DeleteByFile(ctx context.Context, collection, relPath string) (int, error) {
	var n int
	err := g.guard(func() error {
		var innerErr error
		n, innerErr = g.inner.DeleteByFile(ctx, collection, relPath)
		return innerErr
	})
	if err == nil {
		g.breaker.stats.VectorStore.Deletes.Add(int64(n))
	}
	return n, err
}

func (g *Guarded) DeleteByID(ctx context.Context, collection string, ids []string) (int, error) {
	var n int
	err := g.guard(func() error {
		var innerErr error
		n, innerErr = g.inner.DeleteByID(ctx, collection, ids)
		return innerErr
	})
	if err == nil {
		g.breaker.stats.VectorStore.Deletes.Add(int64(n))
	}
	return n, err
}

func (g *Guarded) DeleteByName(ctx context.Context, collection string, names []string) (int, error) {
	var n int
	err := g.guard(func() error {
		var innerErr error
		n, innerErr = g.inner.DeleteByName(ctx, collection, names)
		return innerErr
	})
	if err == nil {
		g.breaker.stats.VectorStore.Deletes.Add(int64(n))
	}
	return n, err
}

func (g *Guarded) Search(ctx context.Context, collection string, q SearchQuery) ([]SearchResult, error) {
	var results []SearchResult
	err := g.guard(func() error {
		var innerErr error
		results, innerErr = g.inner.Search(ctx, collection, q)
		return innerErr
	})
	if err == nil {
		g.breaker.stats.VectorStore.Searches.Add(1)
	}
	return results, err
}

func (g *Guarded) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := g.guard(func() error {
		var innerErr error
		names, innerErr = g.inner.ListCollections(ctx)
		return innerErr
	})
	return names, err
}

func (g *Guarded) Scroll(ctx context.Context, collection string, pageSize int) ([]Point, error) {
	var pts []Point
	err := g.guard(func() error {
		var innerErr error
		pts, innerErr = g.inner.Scroll(ctx, collection, pageSize)
		return innerErr
	})
	return pts, err
}

var _ VectorStore = (*Guarded)(nil)

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errBreakerOpen = sentinelErr("circuit breaker is open")
