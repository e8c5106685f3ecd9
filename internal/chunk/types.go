package chunk

// Classification is the abstract category assigned to a chunk (§3).
type Classification string

const (
	ClassificationFunction     Classification = "FUNCTION"
	ClassificationTypeDef      Classification = "TYPE_DEF"
	ClassificationControlFlow  Classification = "CONTROL_FLOW"
	ClassificationCall         Classification = "CALL"
	ClassificationLiteral      Classification = "LITERAL"
	ClassificationComment      Classification = "COMMENT"
	ClassificationStructural   Classification = "STRUCTURAL"
)

// ChunkerKind identifies which chunker produced a chunk.
type ChunkerKind string

const (
	ChunkerSemantic  ChunkerKind = "semantic"
	ChunkerDelimiter ChunkerKind = "delimiter"
)

// ImportanceScores holds the four normalized importance signals (§3).
type ImportanceScores struct {
	Relevance    float64 `json:"relevance"`
	Context      float64 `json:"context"`
	Discovery    float64 `json:"discovery"`
	Modification float64 `json:"modification"`
}

// Max returns the largest of the four scores, used as the emission gate in
// the semantic chunker (§4.2 step 3).
func (s ImportanceScores) Max() float64 {
	m := s.Relevance
	if s.Context > m {
		m = s.Context
	}
	if s.Discovery > m {
		m = s.Discovery
	}
	if s.Modification > m {
		m = s.Modification
	}
	return m
}

// LineRange is an inclusive [Start, End] line span, 1-indexed.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// BatchKey locates an embedding in the process-wide registry (§3, §9: this
// is what breaks the Chunk<->Embedding circular reference).
type BatchKey struct {
	BatchID    string `json:"batch_id"`
	BatchIndex int    `json:"batch_index"`
	IsSparse   bool   `json:"is_sparse"`
}

// BatchKeys carries the dense and/or sparse lookup keys for a chunk's
// embeddings. Either field may be the zero value if that embedding kind
// was never requested for this chunk.
type BatchKeys struct {
	Dense  *BatchKey `json:"dense,omitempty"`
	Sparse *BatchKey `json:"sparse,omitempty"`
}

// Chunk is an immutable, quoted span of a file plus derived metadata (§3).
// Mutating a Chunk is not supported: construct a new one via With* helpers,
// which return a modified copy. The copy keeps the original ChunkID; no
// With* helper assigns a fresh ID.
type Chunk struct {
	ChunkID          ID               `json:"chunk_id"`
	ChunkName        string           `json:"chunk_name"`
	FilePath         string           `json:"file_path"`
	Content          string           `json:"content"`
	LineRange        LineRange        `json:"line_range"`
	ContentHash      ContentHash      `json:"content_hash"`
	Classification   Classification   `json:"classification"`
	ImportanceScores ImportanceScores `json:"importance_scores"`
	IsComposite      bool             `json:"is_composite"`
	NestingLevel     int              `json:"nesting_level"`
	ChunkerType      ChunkerKind      `json:"chunker_type"`
	BatchKeys        BatchKeys        `json:"batch_keys"`

	// Language and delimiter metadata, populated depending on ChunkerType.
	Language       string `json:"language,omitempty"`
	DelimiterKind  string `json:"delimiter_kind,omitempty"`
	DelimiterStart int    `json:"delimiter_start,omitempty"`
	DelimiterEnd   int    `json:"delimiter_end,omitempty"`
	Priority       int    `json:"priority,omitempty"`
}

// New constructs a Chunk, computing its content hash and assigning a fresh
// ID. Callers must not construct Chunk literals directly outside this
// package and WithBatchKeys, to preserve the immutability invariant (§3, §9).
func New(filePath, content string, lineRange LineRange, classification Classification,
	scores ImportanceScores, chunkerType ChunkerKind) Chunk {
	return Chunk{
		ChunkID:          NewID(),
		FilePath:         filePath,
		Content:          content,
		LineRange:        lineRange,
		ContentHash:      HashContent(content),
		Classification:   classification,
		ImportanceScores: scores,
		ChunkerType:      chunkerType,
	}
}

// WithBatchKeys returns a copy of c with its dense and sparse batch keys
// replaced by keys. Per §9,
// "augmenting" a chunk with an embedding reference produces a new value;
// the embedding payload itself never lives on the Chunk.
func (c Chunk) WithBatchKeys(keys BatchKeys) Chunk {
	c.BatchKeys = keys
	return c
}

// WithName returns a copy of c with ChunkName set.
func (c Chunk) WithName(name string) Chunk {
	c.ChunkName = name
	return c
}

// WithMetadata returns a copy of c with composite/nesting/language metadata set.
func (c Chunk) WithMetadata(isComposite bool, nestingLevel int, language string) Chunk {
	c.IsComposite = isComposite
	c.NestingLevel = nestingLevel
	c.Language = language
	return c
}

// WithLineRange returns a copy of c rebased onto a different line range,
// used when a chunk produced against a byte-range substring (e.g. a
// delimiter-chunker fallback pass over one oversized AST node) must be
// translated back into whole-file line numbers.
func (c Chunk) WithLineRange(r LineRange) Chunk {
	c.LineRange = r
	return c
}

// WithDelimiterMetadata returns a copy of c annotated with delimiter-chunker fields.
func (c Chunk) WithDelimiterMetadata(kind string, start, end, priority, nesting int) Chunk {
	c.DelimiterKind = kind
	c.DelimiterStart = start
	c.DelimiterEnd = end
	c.Priority = priority
	c.NestingLevel = nesting
	return c
}

// EquivalentFor reports whether two chunks are dedup-equivalent per the
// invariant "(content_hash, chunker_type) uniquely determines (content,
// chunker_type)" (§3).
func EquivalentFor(a, b Chunk) bool {
	return a.ContentHash == b.ContentHash && a.ChunkerType == b.ChunkerType
}
