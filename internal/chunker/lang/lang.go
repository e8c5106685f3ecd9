// Package lang holds the per-language abstract-type maps the semantic
// chunker consults (§4.2 step 2): each supported language registers a
// tree-sitter Language plus a table from AST node kind to a
// Classification and a default importance score.
//
// Grounded on the teacher's internal/indexer/parsers/*.go (one file per
// language, each wrapping a tree-sitter grammar), generalized from the
// teacher's three-tier symbols/definitions/data extraction into the
// classification + importance-score model SPEC_FULL.md §4 describes.
package lang

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeweaver/core/internal/chunk"
)

// Rule maps one AST node kind to its classification and base importance.
type Rule struct {
	Classification chunk.Classification
	BaseImportance float64
	// NameField is the tree-sitter field name holding the node's
	// identifier, if any (e.g. "name"). Empty means the node kind never
	// carries an identifying name.
	NameField string
}

// Spec is one language's tree-sitter binding plus its node-kind table.
type Spec struct {
	Name     string
	Language *sitter.Language
	Rules    map[string]Rule
}

var registry = map[string]Spec{}

// Register adds a language Spec to the global registry. Called from the
// init() of each per-language file in this package (python.go, c.go, ...).
func Register(spec Spec) {
	registry[spec.Name] = spec
}

// Lookup returns the Spec for a language tag, if registered.
func Lookup(name string) (Spec, bool) {
	spec, ok := registry[name]
	return spec, ok
}

// Supported reports the set of language tags with a registered Spec,
// i.e. the AST-eligible languages for ChunkerSelector.Select (§4.2).
func Supported() map[string]bool {
	out := make(map[string]bool, len(registry))
	for name := range registry {
		out[name] = true
	}
	return out
}
