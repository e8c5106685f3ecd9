package coreconfig

import (
	"path/filepath"

	"github.com/codeweaver/core/internal/checkpoint"
	"github.com/codeweaver/core/internal/chunker"
	"github.com/codeweaver/core/internal/coreindex"
	"github.com/codeweaver/core/internal/discovery"
	"github.com/codeweaver/core/internal/failover"
	"github.com/codeweaver/core/internal/watcher"
)

// DiscoveryConfig builds the discovery.Config this settings snapshot
// describes (§4.1).
func (s *Settings) DiscoveryConfig() discovery.Config {
	return discovery.Config{
		RootDir:        s.RootDir,
		IgnorePatterns: s.Paths.Ignore,
	}
}

// GovernorConfig builds the per-file chunking resource governor (§4.2, §5).
func (s *Settings) GovernorConfig() chunker.GovernorConfig {
	return chunker.GovernorConfig{
		Timeout:       s.Chunking.PerFileTimeout,
		MaxChunks:     s.Chunking.MaxChunksPerFile,
		MaxASTDepth:   200,
		CheckInterval: 256,
	}
}

// SemanticLanguageSet builds the AST-eligible language lookup the
// chunker.Selector needs.
func (s *Settings) SemanticLanguageSet() map[string]bool {
	out := make(map[string]bool, len(s.Chunking.SemanticLanguages))
	for _, lang := range s.Chunking.SemanticLanguages {
		out[lang] = true
	}
	return out
}

// IndexingConfig builds the coreindex.Config this settings snapshot
// describes (§4.7).
func (s *Settings) IndexingConfig() coreindex.Config {
	return coreindex.Config{
		RootDir:     s.RootDir,
		Collection:  s.Vector.CollectionName,
		BatchFiles:  s.Indexing.BatchFiles,
		BatchChunks: s.Indexing.BatchChunks,
	}
}

// FailoverConfig builds the failover.Config this settings snapshot
// describes (§4.6), resolving the backup file path relative to RootDir
// when it is not already absolute.
func (s *Settings) FailoverConfig() failover.Config {
	path := s.Vector.BackupPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.RootDir, path)
	}
	return failover.Config{
		RestoreDelay:       s.Failover.RestoreDelay,
		BackupSyncInterval: s.Failover.BackupSyncInterval,
		MonitorInterval:    s.Failover.MonitorInterval,
		MaxMemoryMB:        s.Failover.MaxMemoryMB,
		BackupFilePath:     path,
	}
}

// WatcherConfig builds the watcher.Config this settings snapshot
// describes (§4.8). Discovery is left for the caller to attach, since
// the watcher shares the same *discovery.Discovery instance prime_index
// uses.
func (s *Settings) WatcherConfig(disc *discovery.Discovery) watcher.Config {
	return watcher.Config{
		RootDir:             s.RootDir,
		Discovery:           disc,
		QuietWindow:         s.Watcher.QuietWindow,
		PollIntervalSeconds: s.Watcher.PollIntervalSeconds,
	}
}

// ConfigDir is the <config_dir> named throughout §6's persisted-state
// layout.
func (s *Settings) ConfigDir() string {
	return filepath.Join(s.RootDir, ".codeweaver")
}

// ToFingerprintSettings flattens this snapshot into the checkpoint
// package's fingerprint input (§4.10), excluding computed/derived
// fields (neither API keys nor the names of their environment variables
// enter the fingerprint; nothing here reads an environment variable or
// makes a provider round-trip). A disabled provider is left as a nil
// spec, which the checkpoint package serializes as "Unset".
func (s *Settings) ToFingerprintSettings() checkpoint.Settings {
	var dense, sparse *checkpoint.ProviderSpec
	if s.Dense.Enabled {
		dense = &checkpoint.ProviderSpec{Name: s.Dense.Name, Model: s.Dense.Model, Dimension: s.Dense.Dimension}
	}
	if s.Sparse.Enabled {
		sparse = &checkpoint.ProviderSpec{Name: s.Sparse.Name, Model: s.Sparse.Model, Dimension: 0}
	}

	return checkpoint.Settings{
		IndexerSettings: map[string]any{
			"code_patterns":        s.Paths.Code,
			"docs_patterns":        s.Paths.Docs,
			"ignore_patterns":      s.Paths.Ignore,
			"semantic_languages":   s.Chunking.SemanticLanguages,
			"importance_threshold": s.Chunking.ImportanceThreshold,
			"batch_files":          s.Indexing.BatchFiles,
			"batch_chunks":         s.Indexing.BatchChunks,
		},
		DenseProvider:  dense,
		SparseProvider: sparse,
		VectorStore: checkpoint.VectorStoreSpec{
			Kind:           "primary+backup",
			CollectionName: s.Vector.CollectionName,
		},
		Chunker: checkpoint.ChunkerSpec{
			Kind:                "semantic+delimiter",
			Version:             "1",
			ImportanceThreshold: s.Chunking.ImportanceThreshold,
		},
		ProjectRoot: s.RootDir,
	}
}
