package chunker

import (
	"time"

	"github.com/codeweaver/core/internal/coreerr"
	"github.com/codeweaver/core/internal/stats"
)

// GovernorConfig bounds a single file's chunking pass (§4.2 step 6, §5).
type GovernorConfig struct {
	Timeout       time.Duration // default 30s (§5)
	MaxChunks     int           // per-file chunk count ceiling
	MaxASTDepth   int           // default 200
	CheckInterval int           // check_timeout() every N visited nodes
}

// DefaultGovernorConfig matches §5's per-file timeout and §4.2's default
// AST depth ceiling.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		Timeout:       30 * time.Second,
		MaxChunks:     10000,
		MaxASTDepth:   200,
		CheckInterval: 256,
	}
}

// governor enforces the wall-clock, chunk-count, and AST-depth limits a
// single chunking pass is subject to (§4.2 step 6).
type governor struct {
	cfg        GovernorConfig
	deadline   time.Time
	chunkCount int
	visited    int
	stats      *stats.Statistics
}

func newGovernor(cfg GovernorConfig, st *stats.Statistics) *governor {
	return &governor{cfg: cfg, deadline: time.Now().Add(cfg.Timeout), stats: st}
}

// checkTimeout is called periodically during the walk (§4.2 step 6). It
// only actually checks the clock every CheckInterval calls, so it is cheap
// enough to call at every visited node. Timeouts are logged as a
// structured event by the caller and do not abort the overall indexing
// run (§4.2 "Determinism").
func (g *governor) checkTimeout(op string) error {
	g.visited++
	if g.visited%g.cfg.CheckInterval != 0 {
		return nil
	}
	if time.Now().After(g.deadline) {
		if g.stats != nil {
			g.stats.Chunking.Timeouts.Add(1)
		}
		return coreerr.New(coreerr.KindChunkingTimeout, op, errTimeout)
	}
	return nil
}

// checkDepth enforces the AST depth ceiling.
func (g *governor) checkDepth(op string, depth int) error {
	if depth > g.cfg.MaxASTDepth {
		return coreerr.New(coreerr.KindASTDepthExceeded, op, errDepthExceeded)
	}
	return nil
}

// allowChunk enforces the per-file chunk-count ceiling and records the new
// emission.
func (g *governor) allowChunk(op string) error {
	if g.chunkCount >= g.cfg.MaxChunks {
		return coreerr.New(coreerr.KindChunkLimitExceeded, op, errChunkLimitExceeded)
	}
	g.chunkCount++
	return nil
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const (
	errTimeout            = sentinelErr("chunking governor: per-file timeout expired")
	errDepthExceeded      = sentinelErr("chunking governor: AST depth ceiling exceeded")
	errChunkLimitExceeded = sentinelErr("chunking governor: per-file chunk count ceiling exceeded")
)
