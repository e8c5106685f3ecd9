package coreconfig

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader loads Settings from <root_dir>/.codeweaver/config.yml with
// CODEWEAVER_*-prefixed environment variable overrides, the same
// precedence the teacher's own loader.go implements: defaults → config
// file → environment variables (env wins).
type Loader struct {
	rootDir string
}

// NewLoader constructs a Loader rooted at rootDir.
func NewLoader(rootDir string) *Loader {
	return &Loader{rootDir: rootDir}
}

// Load reads the settings file (if present), layers environment
// variable overrides on top, and validates the result.
func (l *Loader) Load() (*Settings, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".codeweaver")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("CODEWEAVER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("coreconfig: read config file: %w", err)
		}
	}

	cfg := &Settings{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("coreconfig: unmarshal config: %w", err)
	}
	cfg.RootDir = l.rootDir

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("coreconfig: invalid configuration: %w", err)
	}

	return cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("dense_embedding.endpoint")
	v.BindEnv("dense_embedding.model")
	v.BindEnv("dense_embedding.dimension")
	v.BindEnv("dense_embedding.api_key_env")
	v.BindEnv("sparse_embedding.enabled")
	v.BindEnv("vector_store.collection_name")
	v.BindEnv("vector_store.backup_path")
	v.BindEnv("indexing.batch_files")
	v.BindEnv("indexing.batch_chunks")
	v.BindEnv("query.default_token_limit")
}

func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("paths.code", d.Paths.Code)
	v.SetDefault("paths.docs", d.Paths.Docs)
	v.SetDefault("paths.ignore", d.Paths.Ignore)

	v.SetDefault("chunking.semantic_languages", d.Chunking.SemanticLanguages)
	v.SetDefault("chunking.importance_threshold", d.Chunking.ImportanceThreshold)
	v.SetDefault("chunking.per_file_timeout", d.Chunking.PerFileTimeout)
	v.SetDefault("chunking.max_chunks_per_file", d.Chunking.MaxChunksPerFile)

	v.SetDefault("dense_embedding.enabled", d.Dense.Enabled)
	v.SetDefault("dense_embedding.name", d.Dense.Name)
	v.SetDefault("dense_embedding.model", d.Dense.Model)
	v.SetDefault("dense_embedding.endpoint", d.Dense.Endpoint)
	v.SetDefault("dense_embedding.api_key_env", d.Dense.APIKeyEnv)
	v.SetDefault("dense_embedding.dimension", d.Dense.Dimension)

	v.SetDefault("sparse_embedding.enabled", d.Sparse.Enabled)
	v.SetDefault("sparse_embedding.name", d.Sparse.Name)

	v.SetDefault("indexing.batch_files", d.Indexing.BatchFiles)
	v.SetDefault("indexing.batch_chunks", d.Indexing.BatchChunks)

	v.SetDefault("vector_store.collection_name", d.Vector.CollectionName)
	v.SetDefault("vector_store.backup_path", d.Vector.BackupPath)

	v.SetDefault("failover.restore_delay", d.Failover.RestoreDelay)
	v.SetDefault("failover.backup_sync_interval", d.Failover.BackupSyncInterval)
	v.SetDefault("failover.monitor_interval", d.Failover.MonitorInterval)
	v.SetDefault("failover.max_memory_mb", d.Failover.MaxMemoryMB)

	v.SetDefault("watcher.quiet_window", d.Watcher.QuietWindow)
	v.SetDefault("watcher.poll_interval_seconds", d.Watcher.PollIntervalSeconds)

	v.SetDefault("query.default_token_limit", d.Query.DefaultTokenLimit)
	v.SetDefault("query.rerank_enabled", d.Query.RerankEnabled)
}

// LoadFromDir is a convenience wrapper mirroring the teacher's
// LoadConfigFromDir.
func LoadFromDir(rootDir string) (*Settings, error) {
	return NewLoader(rootDir).Load()
}
