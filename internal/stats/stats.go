// Package stats implements the process-wide Statistics record (§4.11):
// a single set of counters, safe for concurrent increment, cloned
// atomically for external observability collaborators.
package stats

import "sync/atomic"

// Discovery holds discovery.* counters.
type Discovery struct {
	FilesSeen    atomic.Int64
	FilesSkipped atomic.Int64
	Unreadable   atomic.Int64
}

// Chunking holds chunking.* counters.
type Chunking struct {
	ChunksEmitted    atomic.Int64
	DedupSkipped     atomic.Int64
	SemanticFailed   atomic.Int64
	DelimiterUsed    atomic.Int64
	OversizedFallback atomic.Int64
	Timeouts         atomic.Int64
}

// Indexing holds indexing.* counters (§4.7).
type Indexing struct {
	ChunksEmitted  atomic.Int64
	ChunksUpserted atomic.Int64
	FilesIndexed   atomic.Int64
	FilesFailed    atomic.Int64
}

// Embedding holds embedding.* counters.
type Embedding struct {
	BatchesIssued atomic.Int64
	ItemsIssued   atomic.Int64
	Retries       atomic.Int64
	Failures      atomic.Int64
	TokensEstimate atomic.Int64
}

// VectorStore holds vector_store.* counters.
type VectorStore struct {
	Upserts       atomic.Int64
	Deletes       atomic.Int64
	Searches      atomic.Int64
	BreakerOpened atomic.Int64
	BreakerClosed atomic.Int64
}

// Failover holds failover.* counters.
type Failover struct {
	Activations   atomic.Int64
	Restorations  atomic.Int64
	SyncSuccesses atomic.Int64
	SyncFailures  atomic.Int64
}

// Reconciliation holds reconciliation.* counters.
type Reconciliation struct {
	Scanned      atomic.Int64
	Repaired     atomic.Int64
	Unrecoverable atomic.Int64
}

// QueryByStrategy holds per-strategy query counts.
type QueryByStrategy struct {
	Hybrid  atomic.Int64
	Dense   atomic.Int64
	Sparse  atomic.Int64
	Keyword atomic.Int64
}

// Query holds query.* counters and a simple latency histogram (bucketed by
// power-of-two milliseconds, cheap and lock-free to maintain).
type Query struct {
	Requests       atomic.Int64
	ByStrategy     QueryByStrategy
	LatencyBuckets [numLatencyBuckets]atomic.Int64
}

const numLatencyBuckets = 16 // bucket i covers [2^i, 2^(i+1)) ms; last bucket is overflow.

// ObserveLatency records a query latency sample into the histogram.
func (q *Query) ObserveLatency(ms int64) {
	bucket := 0
	for v := ms; v > 1 && bucket < numLatencyBuckets-1; v >>= 1 {
		bucket++
	}
	q.LatencyBuckets[bucket].Add(1)
}

// Statistics is the process-wide root. It has process lifetime and must be
// explicitly reset at test boundaries (§5, §9) via Reset.
type Statistics struct {
	Discovery      Discovery
	Chunking       Chunking
	Indexing       Indexing
	Embedding      Embedding
	VectorStore    VectorStore
	Failover       Failover
	Reconciliation Reconciliation
	Query          Query
}

// New constructs a fresh, zeroed Statistics instance. Components should
// receive one via their root context rather than reaching for a package
// global (§9: "treat them as owned by a root context object").
func New() *Statistics {
	return &Statistics{}
}

// Snapshot is a point-in-time, plain-data clone suitable for JSON
// serialization by external observability collaborators (§6 /metrics).
type Snapshot struct {
	Discovery struct {
		FilesSeen, FilesSkipped, Unreadable int64
	}
	Chunking struct {
		ChunksEmitted, DedupSkipped, SemanticFailed, DelimiterUsed, OversizedFallback, Timeouts int64
	}
	Indexing struct {
		ChunksEmitted, ChunksUpserted, FilesIndexed, FilesFailed int64
	}
	Embedding struct {
		BatchesIssued, ItemsIssued, Retries, Failures, TokensEstimate int64
	}
	VectorStore struct {
		Upserts, Deletes, Searches, BreakerOpened, BreakerClosed int64
	}
	Failover struct {
		Activations, Restorations, SyncSuccesses, SyncFailures int64
	}
	Reconciliation struct {
		Scanned, Repaired, Unrecoverable int64
	}
	Query struct {
		Requests int64
		ByStrategy struct {
			Hybrid, Dense, Sparse, Keyword int64
		}
		LatencyBucketsMs [numLatencyBuckets]int64
	}
}

// Snapshot clones the current counter values. Each field read is an
// independent atomic load, so the snapshot is not a single consistent
// transaction, but that is acceptable for monitoring counters (the teacher
// makes the same tradeoff for its own progress counters).
func (s *Statistics) Snapshot() Snapshot {
	var out Snapshot
	out.Discovery.FilesSeen = s.Discovery.FilesSeen.Load()
	out.Discovery.FilesSkipped = s.Discovery.FilesSkipped.Load()
	out.Discovery.Unreadable = s.Discovery.Unreadable.Load()

	out.Chunking.ChunksEmitted = s.Chunking.ChunksEmitted.Load()
	out.Chunking.DedupSkipped = s.Chunking.DedupSkipped.Load()
	out.Chunking.SemanticFailed = s.Chunking.SemanticFailed.Load()
	out.Chunking.DelimiterUsed = s.Chunking.DelimiterUsed.Load()
	out.Chunking.OversizedFallback = s.Chunking.OversizedFallback.Load()
	out.Chunking.Timeouts = s.Chunking.Timeouts.Load()

	out.Indexing.ChunksEmitted = s.Indexing.ChunksEmitted.Load()
	out.Indexing.ChunksUpserted = s.Indexing.ChunksUpserted.Load()
	out.Indexing.FilesIndexed = s.Indexing.FilesIndexed.Load()
	out.Indexing.FilesFailed = s.Indexing.FilesFailed.Load()

	out.Embedding.BatchesIssued = s.Embedding.BatchesIssued.Load()
	out.Embedding.ItemsIssued = s.Embedding.ItemsIssued.Load()
	out.Embedding.Retries = s.Embedding.Retries.Load()
	out.Embedding.Failures = s.Embedding.Failures.Load()
	out.Embedding.TokensEstimate = s.Embedding.TokensEstimate.Load()

	out.VectorStore.Upserts = s.VectorStore.Upserts.Load()
	out.VectorStore.Deletes = s.VectorStore.Deletes.Load()
	out.VectorStore.Searches = s.VectorStore.Searches.Load()
	out.VectorStore.BreakerOpened = s.VectorStore.BreakerOpened.Load()
	out.VectorStore.BreakerClosed = s.VectorStore.BreakerClosed.Load()

	out.Failover.Activations = s.Failover.Activations.Load()
	out.Failover.Restorations = s.Failover.Restorations.Load()
	out.Failover.SyncSuccesses = s.Failover.SyncSuccesses.Load()
	out.Failover.SyncFailures = s.Failover.SyncFailures.Load()

	out.Reconciliation.Scanned = s.Reconciliation.Scanned.Load()
	out.Reconciliation.Repaired = s.Reconciliation.Repaired.Load()
	out.Reconciliation.Unrecoverable = s.Reconciliation.Unrecoverable.Load()

	out.Query.Requests = s.Query.Requests.Load()
	out.Query.ByStrategy.Hybrid = s.Query.ByStrategy.Hybrid.Load()
	out.Query.ByStrategy.Dense = s.Query.ByStrategy.Dense.Load()
	out.Query.ByStrategy.Sparse = s.Query.ByStrategy.Sparse.Load()
	out.Query.ByStrategy.Keyword = s.Query.ByStrategy.Keyword.Load()
	for i := range s.Query.LatencyBuckets {
		out.Query.LatencyBucketsMs[i] = s.Query.LatencyBuckets[i].Load()
	}

	return out
}

// Reset zeroes all counters in place. Tests must be able to call this
// between runs (§5, §9). It stores zero into each counter rather than
// replacing the struct, since atomic.Int64 must never be copied after use.
func (s *Statistics) Reset() {
	s.Discovery.FilesSeen.Store(0)
	s.Discovery.FilesSkipped.Store(0)
	s.Discovery.Unreadable.Store(0)

	s.Chunking.ChunksEmitted.Store(0)
	s.Chunking.DedupSkipped.Store(0)
	s.Chunking.SemanticFailed.Store(0)
	s.Chunking.DelimiterUsed.Store(0)
	s.Chunking.OversizedFallback.Store(0)
	s.Chunking.Timeouts.Store(0)

	s.Indexing.ChunksEmitted.Store(0)
	s.Indexing.ChunksUpserted.Store(0)
	s.Indexing.FilesIndexed.Store(0)
	s.Indexing.FilesFailed.Store(0)

	s.Embedding.BatchesIssued.Store(0)
	s.Embedding.ItemsIssued.Store(0)
	s.Embedding.Retries.Store(0)
	s.Embedding.Failures.Store(0)
	s.Embedding.TokensEstimate.Store(0)

	s.VectorStore.Upserts.Store(0)
	s.VectorStore.Deletes.Store(0)
	s.VectorStore.Searches.Store(0)
	s.VectorStore.BreakerOpened.Store(0)
	s.VectorStore.BreakerClosed.Store(0)

	s.Failover.Activations.Store(0)
	s.Failover.Restorations.Store(0)
	s.Failover.SyncSuccesses.Store(0)
	s.Failover.SyncFailures.Store(0)

	s.Reconciliation.Scanned.Store(0)
	s.Reconciliation.Repaired.Store(0)
	s.Reconciliation.Unrecoverable.Store(0)

	s.Query.Requests.Store(0)
	s.Query.ByStrategy.Hybrid.Store(0)
	s.Query.ByStrategy.Dense.Store(0)
	s.Query.ByStrategy.Sparse.Store(0)
	s.Query.ByStrategy.Keyword.Store(0)
	for i := range s.Query.LatencyBuckets {
		s.Query.LatencyBuckets[i].Store(0)
	}
}
