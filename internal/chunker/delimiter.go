package chunker

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/codeweaver/core/internal/chunk"
	"github.com/codeweaver/core/internal/stats"
)

// DelimiterFamily is a language-agnostic (or language-specific) set of
// nestable start/end delimiter pairs, used when no AST grammar is
// registered for a file's language, or as the semantic chunker's
// oversized-node fallback (§4.2 DelimiterChunker algorithm).
type DelimiterFamily struct {
	Name  string
	Pairs []DelimiterPair
}

// DelimiterPair is one nestable delimiter kind, e.g. braces or
// indent-sensitive blocks approximated by a start regex and a priority.
type DelimiterPair struct {
	Kind     string
	Start    *regexp.Regexp
	End      *regexp.Regexp // nil for single-line delimiters matched by Start alone
	Priority int
}

// DefaultFamily is the brace/paren/bracket family used for any language
// without a more specific DelimiterFamily registered; most C-family,
// JS-family, and brace languages nest correctly under it.
var DefaultFamily = DelimiterFamily{
	Name: "braces",
	Pairs: []DelimiterPair{
		{Kind: "brace_block", Start: regexp.MustCompile(`\{`), End: regexp.MustCompile(`\}`), Priority: 3},
		{Kind: "paren_block", Start: regexp.MustCompile(`\(`), End: regexp.MustCompile(`\)`), Priority: 1},
		{Kind: "bracket_block", Start: regexp.MustCompile(`\[`), End: regexp.MustCompile(`\]`), Priority: 1},
	},
}

// DelimiterChunker implements the 3-phase algorithm of §4.2: match
// detection, stack-based boundary extraction, and greedy
// priority-ordered non-overlapping selection.
//
// Grounded on the teacher's classify-by-extension dispatch
// (internal/indexer/discovery.go's extension table), generalized from a
// language dispatch table into an explicit DelimiterFamily value so the
// three phases stay pure functions of (text, family) independent of any
// parser.
type DelimiterChunker struct {
	family DelimiterFamily
	stats  *stats.Statistics
	gov    GovernorConfig
}

// NewDelimiterChunker builds a DelimiterChunker over family (DefaultFamily
// if the caller has nothing more specific).
func NewDelimiterChunker(family DelimiterFamily, deps Deps, gov GovernorConfig) *DelimiterChunker {
	return &DelimiterChunker{family: family, stats: deps.Stats, gov: gov}
}

type match struct {
	pair  DelimiterPair
	start int
	isEnd bool
}

type boundary struct {
	pair    DelimiterPair
	start   int
	end     int
	nesting int
}

func (d *DelimiterChunker) Chunk(ctx context.Context, in Input) ([]chunk.Chunk, error) {
	g := newGovernor(d.gov, d.stats)
	content := in.Content

	matches := d.detectMatches(content)
	boundaries, err := d.extractBoundaries(content, matches, g)
	if err != nil {
		return nil, err
	}
	selected := selectNonOverlapping(boundaries)

	d.stats.Chunking.DelimiterUsed.Add(1)

	// seen is this single Chunk() call's batch-local dedup (invariant 4):
	// identical content within one call shares a chunk_id, but every
	// occurrence is still emitted. It never persists across calls, so it
	// cannot suppress emission for content seen in a different file or a
	// previous run — that reuse belongs to the Indexer.
	seen := make(map[chunk.ContentHash]chunk.ID)

	out := make([]chunk.Chunk, 0, len(selected))
	for _, b := range selected {
		text := content[b.start:b.end]
		if text == "" {
			continue
		}
		startLine := lineOf(content, b.start)
		endLine := lineOf(content, b.end-1)

		c := chunk.New(in.FilePath, text, chunk.LineRange{Start: startLine, End: endLine},
			chunk.ClassificationStructural, chunk.ImportanceScores{}, chunk.ChunkerDelimiter)
		c = c.WithDelimiterMetadata(b.pair.Kind, b.start, b.end, b.pair.Priority, b.nesting)
		c = c.WithMetadata(b.nesting > 0, b.nesting, in.Language)
		c = c.WithName(fmt.Sprintf("Block at line %d", startLine))

		if winner, dup := seen[c.ContentHash]; dup {
			c.ChunkID = winner
			d.stats.Chunking.DedupSkipped.Add(1)
		} else {
			seen[c.ContentHash] = c.ChunkID
		}
		d.stats.Chunking.ChunksEmitted.Add(1)
		out = append(out, c)
	}
	return out, nil
}

// detectMatches is Phase 1: scan with every pair's start/end regex,
// producing an ordered list of matches by byte offset (§4.2 DelimiterChunker
// step 1).
func (d *DelimiterChunker) detectMatches(content string) []match {
	var matches []match
	for _, p := range d.family.Pairs {
		for _, loc := range p.Start.FindAllStringIndex(content, -1) {
			matches = append(matches, match{pair: p, start: loc[0]})
		}
		if p.End != nil {
			for _, loc := range p.End.FindAllStringIndex(content, -1) {
				matches = append(matches, match{pair: p, start: loc[0], isEnd: true})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	return matches
}

// extractBoundaries is Phase 2: a per-delimiter-kind stack resolves
// nesting, producing candidate (start, end, kind, priority, nesting)
// boundaries (§4.2 DelimiterChunker step 2).
func (d *DelimiterChunker) extractBoundaries(content string, matches []match, g *governor) ([]boundary, error) {
	stacks := make(map[string][]int) // kind -> stack of open start offsets
	var out []boundary

	for _, m := range matches {
		if err := g.checkTimeout("chunker.delimiter"); err != nil {
			return nil, err
		}
		stack := stacks[m.pair.Kind]
		if m.pair.End == nil {
			// Single-line delimiter: the match itself is the boundary,
			// extended to end of line.
			end := len(content)
			if idx := indexFrom(content, '\n', m.start); idx >= 0 {
				end = idx
			}
			out = append(out, boundary{pair: m.pair, start: m.start, end: end, nesting: len(stack)})
			continue
		}
		if !m.isEnd {
			stacks[m.pair.Kind] = append(stack, m.start)
			continue
		}
		if len(stack) == 0 {
			continue // unmatched close, ignore
		}
		start := stack[len(stack)-1]
		stacks[m.pair.Kind] = stack[:len(stack)-1]
		out = append(out, boundary{pair: m.pair, start: start, end: m.start + 1, nesting: len(stack) - 1})
	}
	return out, nil
}

// selectNonOverlapping is Phase 3: sort by (priority DESC, length DESC,
// start ASC) and greedily keep non-overlapping boundaries (§4.2
// DelimiterChunker step 3).
func selectNonOverlapping(boundaries []boundary) []boundary {
	sort.Slice(boundaries, func(i, j int) bool {
		a, b := boundaries[i], boundaries[j]
		if a.pair.Priority != b.pair.Priority {
			return a.pair.Priority > b.pair.Priority
		}
		lenA, lenB := a.end-a.start, b.end-b.start
		if lenA != lenB {
			return lenA > lenB
		}
		return a.start < b.start
	})

	var selected []boundary
	for _, b := range boundaries {
		overlaps := false
		for _, s := range selected {
			if b.start < s.end && s.start < b.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			selected = append(selected, b)
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].start < selected[j].start })
	return selected
}

func indexFrom(s string, b byte, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func lineOf(content string, byteOffset int) int {
	if byteOffset < 0 {
		byteOffset = 0
	}
	if byteOffset > len(content) {
		byteOffset = len(content)
	}
	line := 1
	for i := 0; i < byteOffset; i++ {
		if content[i] == '\n' {
			line++
		}
	}
	return line
}
