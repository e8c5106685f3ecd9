// Package chunker implements the Chunker abstract contract (§4.2): a
// variant over SemanticChunker and DelimiterChunker, selected per-file by
// a ChunkerSelector using the file's language tag.
package chunker

import (
	"context"

	"github.com/codeweaver/core/internal/chunk"
	"github.com/codeweaver/core/internal/stats"
)

// Input is everything a Chunker needs to process one file.
type Input struct {
	FilePath string
	Content  string
	Language string
}

// Chunker converts a file's text into an ordered sequence of Chunks.
type Chunker interface {
	Chunk(ctx context.Context, in Input) ([]chunk.Chunk, error)
}

// Selector picks SemanticChunker or DelimiterChunker for a language tag,
// and is itself unit-testable without constructing a full pipeline (§4.2
// supplement).
type Selector struct {
	semantic  Chunker
	delimiter Chunker
	semLangs  map[string]bool
}

// NewSelector builds a Selector backed by sem for AST-eligible languages
// (semLangs) and delim for everything else.
func NewSelector(sem, delim Chunker, semLangs map[string]bool) *Selector {
	return &Selector{semantic: sem, delimiter: delim, semLangs: semLangs}
}

// Select reports the ChunkerKind that would be used for lang, and whether
// lang is AST-eligible at all (§4.2 supplement: "ChunkerSelector.Select").
func (s *Selector) Select(lang string) (chunk.ChunkerKind, bool) {
	if s.semLangs[lang] {
		return chunk.ChunkerSemantic, true
	}
	return chunk.ChunkerDelimiter, false
}

// Chunk dispatches to SemanticChunker when the language is AST-eligible,
// falling back to DelimiterChunker on ParseError or OversizedChunkError
// (§4.2: "Otherwise, or after a semantic parse failure → DelimiterChunker").
func (s *Selector) Chunk(ctx context.Context, in Input) ([]chunk.Chunk, error) {
	kind, eligible := s.Select(in.Language)
	if kind == chunk.ChunkerSemantic && eligible {
		chunks, err := s.semantic.Chunk(ctx, in)
		if err == nil {
			return chunks, nil
		}
		// ParseError/OversizedChunkError (whole-file case) fall back;
		// other errors (e.g. context cancellation) propagate.
		if !isFallbackError(err) {
			return nil, err
		}
	}
	return s.delimiter.Chunk(ctx, in)
}

// Deps bundles the shared collaborators every concrete chunker needs.
//
// Deliberately carries no DedupStore: a chunker's own "skip emission" is
// scoped to a single Chunk() call (invariant 4 — identical content within
// one call shares a chunk_id), never across files or runs. Cross-run
// content-hash reuse is the Indexer's job (internal/coreindex), which
// holds the process-wide DedupStore itself and can re-emit a reused
// chunk under a new file path instead of dropping it.
type Deps struct {
	Stats *stats.Statistics
}
