package chunker

import "github.com/codeweaver/core/internal/coreerr"

// isFallbackError reports whether err is one of the two failure classes
// that cause the selector to retry the same byte range with the
// DelimiterChunker (§4.2: ParseError, and OversizedChunkError when it
// reaches the whole-file level rather than being absorbed node-by-node).
func isFallbackError(err error) bool {
	kind, ok := coreerr.KindOf(err)
	if !ok {
		return false
	}
	return kind == coreerr.KindParse || kind == coreerr.KindOversizedChunk
}
