// Package app assembles the full discovery → chunk → dedup → embed →
// failover-guarded-vector-store → index → query → watch pipeline from a
// resolved coreconfig.Settings. It exists so the demonstration binary
// (cmd/codeweaver-coreindex) and integration tests share one
// construction path rather than duplicating wiring, the same role the
// teacher's cli subcommands play against internal/indexer's
// constructors.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeweaver/core/internal/checkpoint"
	"github.com/codeweaver/core/internal/chunker"
	"github.com/codeweaver/core/internal/coreconfig"
	"github.com/codeweaver/core/internal/coreindex"
	"github.com/codeweaver/core/internal/dedup"
	"github.com/codeweaver/core/internal/discovery"
	"github.com/codeweaver/core/internal/embedding"
	"github.com/codeweaver/core/internal/failover"
	"github.com/codeweaver/core/internal/query"
	"github.com/codeweaver/core/internal/stats"
	"github.com/codeweaver/core/internal/vectorstore"
	"github.com/codeweaver/core/internal/vectorstore/memory"
	"github.com/codeweaver/core/internal/vectorstore/primary"
	"github.com/codeweaver/core/internal/watcher"
)

// App bundles the constructed collaborators, owned for the lifetime of
// one CLI invocation or daemon run.
type App struct {
	Settings  *coreconfig.Settings
	Stats     *stats.Statistics
	Discovery *discovery.Discovery
	Dedup     *dedup.Store
	Selector  *chunker.Selector
	Registry  *embedding.Registry
	Batcher   *embedding.Batcher
	Dense     embedding.DenseProvider
	Sparse    embedding.SparseProvider
	Failover  *failover.Manager
	Manifest  *checkpoint.Manifest
	Indexer   *coreindex.Indexer
	Query     *query.Pipeline
}

// New wires every collaborator named in SPEC_FULL.md from a single
// resolved settings snapshot.
func New(s *coreconfig.Settings) (*App, error) {
	if err := coreconfig.Validate(s); err != nil {
		return nil, fmt.Errorf("app: invalid settings: %w", err)
	}

	st := stats.New()

	disc, err := discovery.New(s.DiscoveryConfig(), st)
	if err != nil {
		return nil, fmt.Errorf("app: construct discovery: %w", err)
	}

	ded := dedup.New(0, st)

	// The chunker itself carries no DedupStore (see chunker.Deps): its own
	// "skip emission" is batch-local to one Chunk() call. ded is the
	// Indexer's cross-run dedup authority, wired into coreindex.Deps below.
	delimiter := chunker.NewDelimiterChunker(chunker.DefaultFamily, chunker.Deps{Stats: st}, s.GovernorConfig())
	semanticCfg := chunker.DefaultSemanticConfig()
	semanticCfg.ImportanceThreshold = s.Chunking.ImportanceThreshold
	semanticCfg.Governor = s.GovernorConfig()
	semantic := chunker.NewSemanticChunker(semanticCfg, chunker.Deps{Stats: st}, delimiter)
	selector := chunker.NewSelector(semantic, delimiter, s.SemanticLanguageSet())

	registry := embedding.NewRegistry()

	var dense embedding.DenseProvider
	if s.Dense.Enabled {
		client := embedding.NewHTTPClient(embedding.DefaultHTTPTransportConfig())
		dense = embedding.NewHTTPProvider(client, s.Dense.Name, s.Dense.Endpoint, os.Getenv(s.Dense.APIKeyEnv), s.Dense.Model, s.Dense.Dimension)
	}
	var sparse embedding.SparseProvider
	if s.Sparse.Enabled && s.Sparse.Name != "bm25" {
		client := embedding.NewHTTPClient(embedding.DefaultHTTPTransportConfig())
		sparse = embedding.NewHTTPSparseProvider(client, s.Sparse.Name, s.Sparse.Endpoint, os.Getenv(s.Sparse.APIKeyEnv), s.Sparse.Model)
	}
	batcher := embedding.NewBatcher(embedding.DefaultBatcherConfig(), dense, sparse, registry, st)

	primaryStore := primary.New()
	denseDim := s.Dense.Dimension
	if err := primaryStore.EnsureCollection(context.Background(), s.Vector.CollectionName,
		&vectorstore.VectorConfig{Dimension: denseDim, Metric: "cos"}, &vectorstore.VectorConfig{}); err != nil {
		return nil, fmt.Errorf("app: ensure primary collection: %w", err)
	}
	guardedPrimary := vectorstore.NewGuarded(primaryStore, st)

	backupStore := memory.New()
	if err := backupStore.EnsureCollection(context.Background(), s.Vector.CollectionName,
		&vectorstore.VectorConfig{Dimension: denseDim, Metric: "cos"}, &vectorstore.VectorConfig{}); err != nil {
		return nil, fmt.Errorf("app: ensure backup collection: %w", err)
	}

	manifest := checkpoint.NewManifest(filepath.Join(s.ConfigDir(), "manifest.json"))
	if err := manifest.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("app: load manifest: %w", err)
	}

	fm := failover.New(s.FailoverConfig(), guardedPrimary, backupStore, manifest, nil)

	ix := coreindex.New(s.IndexingConfig(), coreindex.Deps{
		Discovery: disc,
		Selector:  selector,
		Dedup:     ded,
		Batcher:   batcher,
		Registry:  registry,
		Dense:     dense,
		Sparse:    sparse,
		Store:     fm,
		Manifest:  manifest,
		Stats:     st,
	})

	qp := &query.Pipeline{
		Dense:      dense,
		Sparse:     sparse,
		Store:      failover.LiveStore{Manager: fm},
		Breaker:    guardedPrimary.Breaker(),
		Collection: s.Vector.CollectionName,
	}

	return &App{
		Settings:  s,
		Stats:     st,
		Discovery: disc,
		Dedup:     ded,
		Selector:  selector,
		Registry:  registry,
		Batcher:   batcher,
		Dense:     dense,
		Sparse:    sparse,
		Failover:  fm,
		Manifest:  manifest,
		Indexer:   ix,
		Query:     qp,
	}, nil
}

// NewWatcher constructs the debounced file watcher sharing this App's
// Discovery instance (§4.8).
func (a *App) NewWatcher() (*watcher.Watcher, error) {
	return watcher.New(a.Settings.WatcherConfig(a.Discovery))
}
