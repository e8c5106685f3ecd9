package embedding

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"

	"github.com/codeweaver/core/internal/chunk"
	"github.com/codeweaver/core/internal/coreerr"
	"github.com/codeweaver/core/internal/stats"
)

// BatcherConfig parameterizes embedding issuance (§5): batch size and the
// in-flight-batch concurrency ceiling.
type BatcherConfig struct {
	BatchSize         int // default 64 (§5)
	MaxInFlightBatches int64 // default 4 (§5)
}

// DefaultBatcherConfig matches §5's stated defaults.
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{BatchSize: 64, MaxInFlightBatches: 4}
}

// Batcher issues dense/sparse embedding requests for accumulated Chunks,
// bounding in-flight batches with a semaphore and retrying retriable
// provider errors with exponential backoff (§4.4, §5, §7).
//
// Grounded on the teacher's EmbedWithProgress (internal/embed/batched.go),
// generalized from sequential batching to semaphore-bounded concurrent
// batching (the teacher processes batches one at a time; §5 requires
// "truly concurrent" embedding calls bounded by an in-flight semaphore)
// and from a single Provider to the dense/sparse pair, with
// cenkalti/backoff/v5 replacing a hand-rolled retry loop.
type Batcher struct {
	cfg      BatcherConfig
	dense    DenseProvider
	sparse   SparseProvider
	registry *Registry
	stats    *stats.Statistics
	sem      *semaphore.Weighted
}

// NewBatcher builds a Batcher. Either dense or sparse may be nil, meaning
// that embedding kind is not requested for this pipeline.
func NewBatcher(cfg BatcherConfig, dense DenseProvider, sparse SparseProvider, registry *Registry, st *stats.Statistics) *Batcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.MaxInFlightBatches <= 0 {
		cfg.MaxInFlightBatches = 4
	}
	return &Batcher{
		cfg:      cfg,
		dense:    dense,
		sparse:   sparse,
		registry: registry,
		stats:    st,
		sem:      semaphore.NewWeighted(cfg.MaxInFlightBatches),
	}
}

// EmbedChunks requests dense and/or sparse embeddings for chunks and
// returns copies annotated with the resulting BatchKeys (§4.7 step 3:
// "Request dense (and/or sparse) embeddings for the accumulated Chunks").
// Between-batch ordering is not guaranteed (§5); the returned slice
// preserves the input order regardless, since each result is written back
// to its original index.
func (b *Batcher) EmbedChunks(ctx context.Context, chunks []chunk.Chunk, wantDense, wantSparse bool) ([]chunk.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}

	out := make([]chunk.Chunk, len(chunks))
	copy(out, chunks)

	type batchRange struct{ start, end int }
	var ranges []batchRange
	for start := 0; start < len(chunks); start += b.cfg.BatchSize {
		end := start + b.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		ranges = append(ranges, batchRange{start, end})
	}

	errs := make([]error, len(ranges))
	done := make(chan int, len(ranges))

	for i, r := range ranges {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			done <- i
			continue
		}
		go func(idx int, r batchRange) {
			defer b.sem.Release(1)
			defer func() { done <- idx }()
			errs[idx] = b.embedOneBatch(ctx, out[r.start:r.end], wantDense, wantSparse)
		}(i, r)
	}

	for range ranges {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *Batcher) embedOneBatch(ctx context.Context, batch []chunk.Chunk, wantDense, wantSparse bool) error {
	b.stats.Embedding.BatchesIssued.Add(1)
	b.stats.Embedding.ItemsIssued.Add(int64(len(batch)))

	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}
	batchID := NewBatchID()

	var denseVecs []Vector
	var sparseVecs []SparseVector

	if wantDense && b.dense != nil {
		v, err := retry(ctx, b.stats, func() ([]Vector, error) { return b.dense.Embed(ctx, texts, ModePassage) })
		if err != nil {
			return fmt.Errorf("embedding: dense batch %s: %w", batchID, err)
		}
		denseVecs = v
	}
	if wantSparse && b.sparse != nil {
		v, err := retry(ctx, b.stats, func() ([]SparseVector, error) { return b.sparse.Embed(ctx, texts, ModePassage) })
		if err != nil {
			return fmt.Errorf("embedding: sparse batch %s: %w", batchID, err)
		}
		sparseVecs = v
	}

	for i := range batch {
		var keys chunk.BatchKeys
		if denseVecs != nil {
			key := chunk.BatchKey{BatchID: batchID, BatchIndex: i, IsSparse: false}
			b.registry.PutDense(key, denseVecs[i])
			keys.Dense = &key
		}
		if sparseVecs != nil {
			key := chunk.BatchKey{BatchID: batchID, BatchIndex: i, IsSparse: true}
			b.registry.PutSparse(key, sparseVecs[i])
			keys.Sparse = &key
		}
		batch[i] = batch[i].WithBatchKeys(keys)
	}
	return nil
}

// retry wraps a provider call with exponential backoff, retrying only
// the retriable subset of ProviderError (5xx, connection reset, timeout,
// 429) per §4.4/§7; non-retriable errors stop the retry loop immediately
// via backoff.Permanent.
func retry[T any](ctx context.Context, st *stats.Statistics, op func() (T, error)) (T, error) {
	wrapped := func() (T, error) {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if !coreerr.IsRetriable(err) {
			return v, backoff.Permanent(err)
		}
		st.Embedding.Retries.Add(1)
		return v, err
	}
	v, err := backoff.Retry(ctx, wrapped, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	if err != nil {
		st.Embedding.Failures.Add(1)
	}
	return v, err
}
