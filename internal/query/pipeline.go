// Package query implements the QueryPipeline (§4.9): find_code, the
// single external retrieval entry point. It selects a retrieval strategy
// from provider/store health, embeds the query, searches the active
// vector store, optionally reranks, and packs results under a token
// budget.
//
// Grounded on the teacher's internal/mcp search path (query embedding via
// the same EmbeddingProvider interface, a single exported Query-like
// entrypoint returning a flat result slice) and on this module's own
// internal/vectorstore + internal/embedding packages for the concrete
// collaborators it orchestrates; the strategy table and latency-metadata
// shape are new structure the teacher has no equivalent for, built
// directly from §4.9 and the §6 response schema.
package query

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/codeweaver/core/internal/corelog"
	"github.com/codeweaver/core/internal/embedding"
	"github.com/codeweaver/core/internal/vectorstore"
)

// Strategy is one of the four retrieval strategies §4.9's table names.
type Strategy string

const (
	HybridSearch    Strategy = "HYBRID_SEARCH"
	DenseSearch     Strategy = "DENSE_SEARCH"
	SparseOnly      Strategy = "SPARSE_ONLY"
	KeywordFallback Strategy = "KEYWORD_FALLBACK"
)

// memoryRefuser is satisfied by failover.LiveStore: it lets FindCode
// distinguish a deliberate memory-safety degradation (§4.6's red zone)
// from an ordinary keyword fallback, without this package depending on
// internal/failover directly.
type memoryRefuser interface {
	MemoryRefused() bool
}

// Reranker scores candidates against query text (§4.9 step 4). A
// reranker failure is logged and never changes result ordering.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []vectorstore.SearchResult) ([]float32, error)
}

// Request is find_code's input (§6).
type Request struct {
	Query          string
	Intent         string
	TokenLimit     int // default 30000
	FocusLanguages []string
}

// Result is one packed response entry (§6's "results[]").
type Result struct {
	FilePath       string
	ChunkName      string
	LineStart      int
	LineEnd        int
	Content        string
	Classification string
	Score          float32
}

// Response is FindCodeResponseSummary (§4.9, §6).
type Response struct {
	Results         []Result
	StrategyUsed    Strategy
	TotalCandidates int
	LatencyMS       int64
	EmbedMS         int64
	SearchMS        int64
	RerankMS        int64
	PackMS          int64
	Warnings        []string
}

const defaultTokenLimit = 30000
const defaultFinalK = 10
const candidateMultiplier = 3

// Pipeline wires the collaborators find_code needs.
type Pipeline struct {
	Dense    embedding.DenseProvider  // nil if no dense provider configured
	Sparse   embedding.SparseProvider // nil if no sparse provider configured
	Store    vectorstore.VectorStore  // the currently active store (primary or failover backup)
	Breaker  *vectorstore.CircuitBreaker // nil if Store is not Guarded
	Reranker Reranker                 // nil disables reranking
	Collection string
}

// FindCode runs the full §4.9 algorithm.
func (p *Pipeline) FindCode(ctx context.Context, req Request) Response {
	start := time.Now()
	resp := Response{}

	tokenLimit := req.TokenLimit
	if tokenLimit <= 0 {
		tokenLimit = defaultTokenLimit
	}

	strategy := p.selectStrategy()
	resp.StrategyUsed = strategy
	if strategy == KeywordFallback {
		if mr, ok := p.Store.(memoryRefuser); ok && mr.MemoryRefused() {
			resp.Warnings = append(resp.Warnings, "backup_refused_memory")
		}
	}

	embedStart := time.Now()
	denseVec, sparseVec, embedWarning := p.embedQuery(ctx, strategy, req.Query)
	resp.EmbedMS = time.Since(embedStart).Milliseconds()
	if embedWarning != "" {
		resp.Warnings = append(resp.Warnings, embedWarning)
	}

	candidateCount := defaultFinalK * candidateMultiplier
	searchQuery := vectorstore.SearchQuery{
		Dense:          denseVec,
		Sparse:         sparseVec,
		Limit:          candidateCount,
		FocusLanguages: req.FocusLanguages,
	}
	if strategy == HybridSearch || strategy == SparseOnly || strategy == KeywordFallback {
		// primary.Store's sparse arm is bleve full-text, driven by the
		// query text rather than the provider's raw term-weight map, so
		// every strategy that touches the sparse arm needs it set.
		searchQuery.Keyword = req.Query
	}

	searchStart := time.Now()
	candidates, err := p.Store.Search(ctx, p.Collection, searchQuery)
	resp.SearchMS = time.Since(searchStart).Milliseconds()
	if err != nil {
		corelog.Event(slog.LevelWarn, "query.search_failed", slog.Any("error", err))
		resp.Warnings = append(resp.Warnings, "search: "+err.Error())
		resp.LatencyMS = time.Since(start).Milliseconds()
		return resp
	}
	resp.TotalCandidates = len(candidates)
	if resp.TotalCandidates == 0 {
		resp.Warnings = append(resp.Warnings, "empty_index")
	}

	rerankStart := time.Now()
	candidates = p.rerank(ctx, req.Query, candidates)
	resp.RerankMS = time.Since(rerankStart).Milliseconds()

	packStart := time.Now()
	resp.Results, resp.Warnings = pack(candidates, tokenLimit, resp.Warnings)
	resp.PackMS = time.Since(packStart).Milliseconds()

	resp.LatencyMS = time.Since(start).Milliseconds()
	return resp
}

// selectStrategy implements §4.9's precondition table.
func (p *Pipeline) selectStrategy() Strategy {
	denseHealthy := p.Dense != nil && p.Dense.Healthy() && !p.breakerOpen()
	sparseHealthy := p.Sparse != nil && p.Sparse.Healthy() && !p.breakerOpen()

	switch {
	case denseHealthy && sparseHealthy:
		return HybridSearch
	case denseHealthy:
		return DenseSearch
	case sparseHealthy:
		return SparseOnly
	default:
		return KeywordFallback
	}
}

func (p *Pipeline) breakerOpen() bool {
	return p.Breaker != nil && p.Breaker.State() == vectorstore.StateOpen
}

// embedQuery embeds req for the chosen strategy. Returned warning is
// non-empty only when embedding fails outright; the caller still
// proceeds (e.g. to a keyword search) rather than aborting.
func (p *Pipeline) embedQuery(ctx context.Context, strategy Strategy, queryText string) ([]float32, map[uint32]float32, string) {
	var dense []float32
	var sparse map[uint32]float32

	if strategy == HybridSearch || strategy == DenseSearch {
		vecs, err := p.Dense.Embed(ctx, []string{queryText}, embedding.ModeQuery)
		if err != nil || len(vecs) == 0 {
			return nil, nil, "embed: dense embedding failed, falling back to available signal"
		}
		dense = vecs[0]
	}
	if strategy == HybridSearch || strategy == SparseOnly {
		vecs, err := p.Sparse.Embed(ctx, []string{queryText}, embedding.ModeQuery)
		if err != nil || len(vecs) == 0 {
			return dense, nil, "embed: sparse embedding failed, falling back to available signal"
		}
		sparse = vecs[0]
	}
	return dense, sparse, ""
}

// rerank applies p.Reranker if configured; a reranker error is logged and
// never changes ordering (§4.9 step 4).
func (p *Pipeline) rerank(ctx context.Context, queryText string, candidates []vectorstore.SearchResult) []vectorstore.SearchResult {
	if p.Reranker == nil || len(candidates) == 0 {
		return candidates
	}
	scores, err := p.Reranker.Rerank(ctx, queryText, candidates)
	if err != nil {
		corelog.Event(slog.LevelWarn, "query.rerank_failed", slog.Any("error", err))
		return candidates
	}
	if len(scores) != len(candidates) {
		corelog.Event(slog.LevelWarn, "query.rerank_score_count_mismatch", slog.Int("got", len(scores)), slog.Int("want", len(candidates)))
		return candidates
	}
	reranked := make([]vectorstore.SearchResult, len(candidates))
	copy(reranked, candidates)
	for i := range reranked {
		reranked[i].Score = scores[i]
	}
	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })
	return reranked
}

// pack converts candidates into Results, stopping once the cumulative
// token-count approximation reaches tokenLimit (§4.9 step 5).
func pack(candidates []vectorstore.SearchResult, tokenLimit int, warnings []string) ([]Result, []string) {
	results := make([]Result, 0, len(candidates))
	tokensUsed := 0

	for _, c := range candidates {
		content, _ := c.Payload["content"].(string)
		tokens := estimateTokens(content)
		if tokensUsed+tokens > tokenLimit {
			warnings = append(warnings, "truncated_due_to_budget")
			break
		}
		tokensUsed += tokens
		results = append(results, resultFromCandidate(c, content))
	}
	return results, warnings
}

func resultFromCandidate(c vectorstore.SearchResult, content string) Result {
	r := Result{Content: content, Score: c.Score}
	if fp, ok := c.Payload["file_path"].(string); ok {
		r.FilePath = fp
	}
	if cls, ok := c.Payload["classification"].(string); ok {
		r.Classification = cls
	}
	if chunkField, ok := c.Payload["chunk"].(map[string]any); ok {
		if name, ok := chunkField["chunk_name"].(string); ok {
			r.ChunkName = name
		}
	}
	if lr, ok := c.Payload["line_range"].([]int); ok && len(lr) == 2 {
		r.LineStart, r.LineEnd = lr[0], lr[1]
	}
	return r
}

func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
