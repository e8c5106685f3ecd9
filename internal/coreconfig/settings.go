// Package coreconfig is the resolved settings snapshot the core accepts
// (§1 Non-goals: "configuration parsing and validation, beyond accepting
// an already-resolved settings object"). Its shape mirrors the teacher's
// own project-local `internal/config.Config` (yaml + mapstructure tags),
// generalized from the teacher's code/docs/chunking fields to every
// subsystem SPEC_FULL.md names: dense/sparse embedding providers, the
// primary/backup vector store pair, failover timing, the file watcher,
// and query defaults.
package coreconfig

import "time"

// Settings is the fully-resolved, already-validated configuration this
// module's components are constructed from. A caller (the demonstration
// binary, or a host application) is responsible for producing one; this
// package never re-derives defaults from a live filesystem scan or a
// provider round-trip, since computed/derived values must never leak
// into the checkpoint fingerprint (§4.10).
type Settings struct {
	RootDir   string          `yaml:"root_dir" mapstructure:"root_dir"`
	Paths     PathsSettings   `yaml:"paths" mapstructure:"paths"`
	Chunking  ChunkingSettings `yaml:"chunking" mapstructure:"chunking"`
	Dense     ProviderSettings `yaml:"dense_embedding" mapstructure:"dense_embedding"`
	Sparse    ProviderSettings `yaml:"sparse_embedding" mapstructure:"sparse_embedding"`
	Indexing  IndexingSettings `yaml:"indexing" mapstructure:"indexing"`
	Vector    VectorSettings  `yaml:"vector_store" mapstructure:"vector_store"`
	Failover  FailoverSettings `yaml:"failover" mapstructure:"failover"`
	Watcher   WatcherSettings `yaml:"watcher" mapstructure:"watcher"`
	Query     QuerySettings   `yaml:"query" mapstructure:"query"`
}

// PathsSettings defines which files to index and which to ignore,
// carried over unchanged from the teacher's PathsConfig.
type PathsSettings struct {
	Code   []string `yaml:"code" mapstructure:"code"`
	Docs   []string `yaml:"docs" mapstructure:"docs"`
	Ignore []string `yaml:"ignore" mapstructure:"ignore"`
}

// ChunkingSettings configures both the delimiter/semantic selector and
// the per-file resource governor (§4.2, §5).
type ChunkingSettings struct {
	SemanticLanguages   []string      `yaml:"semantic_languages" mapstructure:"semantic_languages"`
	ImportanceThreshold float64       `yaml:"importance_threshold" mapstructure:"importance_threshold"`
	PerFileTimeout      time.Duration `yaml:"per_file_timeout" mapstructure:"per_file_timeout"`
	MaxChunksPerFile    int           `yaml:"max_chunks_per_file" mapstructure:"max_chunks_per_file"`
}

// ProviderSettings is one embedding provider's configuration (§4.4).
// Endpoint/APIKeyEnv select an HTTP-based provider; Dimension is
// required so the vector store's collection can be sized up front.
type ProviderSettings struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Name      string `yaml:"name" mapstructure:"name"`
	Model     string `yaml:"model" mapstructure:"model"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
}

// IndexingSettings configures the Indexer's batching (§4.7).
type IndexingSettings struct {
	BatchFiles  int `yaml:"batch_files" mapstructure:"batch_files"`
	BatchChunks int `yaml:"batch_chunks" mapstructure:"batch_chunks"`
}

// VectorSettings names the vector store's identity for fingerprinting
// (§4.10) and where the backup store persists (§4.6.2).
type VectorSettings struct {
	CollectionName string `yaml:"collection_name" mapstructure:"collection_name"`
	BackupPath     string `yaml:"backup_path" mapstructure:"backup_path"`
}

// FailoverSettings configures the FailoverManager (§4.6).
type FailoverSettings struct {
	RestoreDelay       time.Duration `yaml:"restore_delay" mapstructure:"restore_delay"`
	BackupSyncInterval time.Duration `yaml:"backup_sync_interval" mapstructure:"backup_sync_interval"`
	MonitorInterval    time.Duration `yaml:"monitor_interval" mapstructure:"monitor_interval"`
	MaxMemoryMB        int           `yaml:"max_memory_mb" mapstructure:"max_memory_mb"`
}

// WatcherSettings configures the debounced file watcher (§4.8).
type WatcherSettings struct {
	QuietWindow         time.Duration `yaml:"quiet_window" mapstructure:"quiet_window"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds" mapstructure:"poll_interval_seconds"`
}

// QuerySettings configures find_code defaults (§4.9, §6).
type QuerySettings struct {
	DefaultTokenLimit int  `yaml:"default_token_limit" mapstructure:"default_token_limit"`
	RerankEnabled     bool `yaml:"rerank_enabled" mapstructure:"rerank_enabled"`
}

// Default returns sensible defaults, the same role the teacher's
// config.Default() plays, generalized across every subsystem.
func Default() *Settings {
	return &Settings{
		Paths: PathsSettings{
			Code: []string{
				"**/*.go", "**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx",
				"**/*.py", "**/*.rs", "**/*.c", "**/*.cpp", "**/*.h",
				"**/*.php", "**/*.rb", "**/*.java",
			},
			Docs: []string{"**/*.md", "**/*.rst"},
			Ignore: []string{
				"node_modules/**", "vendor/**", ".git/**", "dist/**",
				"build/**", "target/**", "__pycache__/**", "*.pyc",
			},
		},
		Chunking: ChunkingSettings{
			SemanticLanguages:   []string{"python", "typescript", "rust", "ruby", "java", "c", "php"},
			ImportanceThreshold: 0.3,
			PerFileTimeout:      30 * time.Second,
			MaxChunksPerFile:    10000,
		},
		Dense: ProviderSettings{
			Enabled:   true,
			Name:      "voyage",
			Model:     "voyage-code-3",
			Endpoint:  "https://api.voyageai.com/v1/embeddings",
			APIKeyEnv: "VOYAGE_API_KEY",
			Dimension: 1024,
		},
		Sparse: ProviderSettings{
			Enabled: false,
			Name:    "bm25",
		},
		Indexing: IndexingSettings{
			BatchFiles:  32,
			BatchChunks: 512,
		},
		Vector: VectorSettings{
			CollectionName: "code",
			BackupPath:     ".codeweaver/cache/vector_store.json",
		},
		Failover: FailoverSettings{
			RestoreDelay:       60 * time.Second,
			BackupSyncInterval: 300 * time.Second,
			MonitorInterval:    5 * time.Second,
		},
		Watcher: WatcherSettings{
			QuietWindow:         500 * time.Millisecond,
			PollIntervalSeconds: 2,
		},
		Query: QuerySettings{
			DefaultTokenLimit: 30000,
			RerankEnabled:     false,
		},
	}
}
