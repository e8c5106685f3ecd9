// Package discovery implements FileDiscovery (§4.1): a restartable,
// deterministic walk of a project tree that yields DiscoveredFile values,
// honoring ignore patterns, a size ceiling, and a binary-content probe.
//
// Grounded on the teacher's internal/indexer/discovery.go glob-matching
// walk, generalized from the teacher's code/docs pattern split into the
// spec's single ignore-and-classify model and extended with the size
// ceiling and binary probe §4.1 requires.
package discovery

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/codeweaver/core/internal/chunk"
	"github.com/codeweaver/core/internal/stats"
)

// DefaultSizeCeiling is the per-file content ceiling (§4.1, §5): 10 MiB.
const DefaultSizeCeiling = 10 * 1024 * 1024

// probeWindow is how many leading bytes are read to classify binary content.
const probeWindow = 8 * 1024

// File is a DiscoveredFile (§3): stable relative path, size, language tag,
// content hash.
type File struct {
	AbsPath  string
	RelPath  string // project-relative, forward-slash, no leading "./"
	Size     int64
	Language string
	Hash     chunk.ContentHash
}

// Config configures a Discovery walk.
type Config struct {
	RootDir        string
	IgnorePatterns []string
	SizeCeiling    int64 // 0 means DefaultSizeCeiling
}

// Discovery walks a project tree honoring ignore rules (§4.1).
type Discovery struct {
	rootDir        string
	ignorePatterns []glob.Glob
	sizeCeiling    int64
	stats          *stats.Statistics
}

// New compiles the ignore patterns and returns a Discovery for rootDir.
func New(cfg Config, st *stats.Statistics) (*Discovery, error) {
	d := &Discovery{
		rootDir:     cfg.RootDir,
		sizeCeiling: cfg.SizeCeiling,
		stats:       st,
	}
	if d.sizeCeiling <= 0 {
		d.sizeCeiling = DefaultSizeCeiling
	}
	for _, pattern := range cfg.IgnorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("discovery: compile ignore pattern %q: %w", pattern, err)
		}
		d.ignorePatterns = append(d.ignorePatterns, g)
	}
	return d, nil
}

// Discover walks the tree and returns the current set of indexable files.
// It is deterministic given the same filesystem state and finite: it never
// aborts the walk on a per-file read error, instead recording
// discovery.unreadable and continuing (§4.1 failure model).
func (d *Discovery) Discover() ([]File, error) {
	var files []File

	err := filepath.Walk(d.rootDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			d.stats.Discovery.Unreadable.Add(1)
			return nil // never abort the walk on a per-entry error
		}

		relPath, relErr := filepath.Rel(d.rootDir, path)
		if relErr != nil {
			return nil
		}
		relPath = normalizeRelPath(relPath)

		if info.IsDir() {
			if relPath != "." && d.shouldIgnoreDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		d.stats.Discovery.FilesSeen.Add(1)

		if d.shouldIgnoreFile(relPath) {
			d.stats.Discovery.FilesSkipped.Add(1)
			return nil
		}

		if info.Size() > d.sizeCeiling {
			d.stats.Discovery.FilesSkipped.Add(1)
			return nil
		}

		f, err := d.classify(path, relPath, info.Size())
		if err != nil {
			d.stats.Discovery.Unreadable.Add(1)
			return nil
		}
		if f == nil {
			// Binary probe says skip; not an error.
			d.stats.Discovery.FilesSkipped.Add(1)
			return nil
		}

		files = append(files, *f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: walk %s: %w", d.rootDir, err)
	}

	return files, nil
}

// classify reads the probe window, decides if the file is binary, and
// hashes the full content if not. Returns (nil, nil) for binary files: the
// probe is authoritative (§4.1).
func (d *Discovery) classify(absPath, relPath string, size int64) (*File, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("discovery: read %s: %w", absPath, err)
	}

	window := content
	if len(window) > probeWindow {
		window = window[:probeWindow]
	}
	if looksBinary(window) {
		return nil, nil
	}

	return &File{
		AbsPath:  absPath,
		RelPath:  relPath,
		Size:     size,
		Language: languageFor(relPath),
		Hash:     chunk.HashContent(string(content)),
	}, nil
}

// looksBinary classifies content by null-byte frequency: any NUL byte in
// the probe window is treated as binary, matching common heuristics (git,
// ripgrep) for "probably not text".
func looksBinary(window []byte) bool {
	return bytes.IndexByte(window, 0) != -1
}

// shouldIgnoreDir reports whether a directory should be pruned at the
// walk boundary. ".cortex"-equivalent state directories are always
// skipped in addition to configured patterns.
func (d *Discovery) shouldIgnoreDir(relPath string) bool {
	if relPath == ".codeweaver" || strings.HasPrefix(relPath, ".codeweaver/") {
		return true
	}
	if d.matchesAny(relPath) {
		return true
	}
	return d.matchesAny(relPath + "/**")
}

// ShouldIgnore reports whether relPath (already normalized) matches an
// ignore pattern, for collaborators outside the discovery walk itself —
// the Watcher (§4.8) uses this to drop filesystem events for paths that
// would never have been discovered in the first place.
func (d *Discovery) ShouldIgnore(relPath string) bool {
	return d.shouldIgnoreFile(relPath)
}

func (d *Discovery) shouldIgnoreFile(relPath string) bool {
	if relPath == ".codeweaver" || strings.HasPrefix(relPath, ".codeweaver/") {
		return true
	}
	return d.matchesAny(relPath)
}

func (d *Discovery) matchesAny(path string) bool {
	for _, pattern := range d.ignorePatterns {
		if pattern.Match(path) {
			return true
		}
	}
	return false
}

// normalizeRelPath is the canonical path form used everywhere a path
// enters the manifest or vector-store payload (§4.7.1, §9): forward
// slashes, no leading "./", no trailing slash.
func normalizeRelPath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		p = "."
	}
	return p
}

var extToLanguage = map[string]string{
	".go":    "go",
	".py":    "python",
	".ts":    "typescript",
	".tsx":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".rs":    "rust",
	".rb":    "ruby",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".php":   "php",
	".md":    "markdown",
	".rst":   "restructuredtext",
}

func languageFor(relPath string) string {
	ext := strings.ToLower(filepath.Ext(relPath))
	if lang, ok := extToLanguage[ext]; ok {
		return lang
	}
	return "unknown"
}
