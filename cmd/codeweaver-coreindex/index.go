package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeweaver/core/internal/app"
	"github.com/codeweaver/core/internal/checkpoint"
	"github.com/codeweaver/core/internal/coreconfig"
	"github.com/codeweaver/core/internal/corelog"
	"github.com/codeweaver/core/internal/watcher"
)

var (
	forceReindexFlag bool
	watchFlag        bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the codebase for semantic search (prime_index)",
	Long: `Index walks the project tree, chunks every eligible source file, embeds
new or changed content, and upserts the result into the vector store.

Examples:
  # Prime the index for the current directory
  codeweaver-coreindex index

  # Force a full re-index, ignoring the manifest
  codeweaver-coreindex index --force

  # Watch for changes and reindex incrementally
  codeweaver-coreindex index --watch
`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&forceReindexFlag, "force", false, "force a full re-index, ignoring the manifest")
	indexCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "watch for file changes and reindex incrementally after priming")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\ninterrupted, cancelling...")
		cancel()
	}()

	rootDir, err := resolveRootDir()
	if err != nil {
		return fmt.Errorf("resolve root directory: %w", err)
	}

	settings, err := coreconfig.LoadFromDir(rootDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	a, err := app.New(settings)
	if err != nil {
		return fmt.Errorf("construct pipeline: %w", err)
	}

	ckpt := checkpoint.NewManager(settings.ConfigDir())
	fingerprint, incompatible, err := ckpt.CheckCompatibility(settings.ToFingerprintSettings())
	if err != nil {
		return fmt.Errorf("check settings compatibility: %w", err)
	}
	if incompatible && !forceReindexFlag {
		corelog.Event(slog.LevelInfo, "cli.settings_changed_forcing_reindex")
		forceReindexFlag = true
	}

	a.Failover.Start(ctx)
	defer a.Failover.Stop()

	summary, err := a.Indexer.PrimeIndex(ctx, forceReindexFlag)
	if err != nil {
		return fmt.Errorf("prime_index: %w", err)
	}
	fmt.Printf("indexed: %d discovered, %d indexed, %d failed, %d chunks upserted (%s)\n",
		summary.DiscoveredCount, summary.FilesIndexed, summary.FilesFailed, summary.ChunksUpserted, summary.Status)

	if err := ckpt.PersistFingerprint(fingerprint); err != nil {
		return fmt.Errorf("persist settings fingerprint: %w", err)
	}

	if !watchFlag {
		return nil
	}

	w, err := a.NewWatcher()
	if err != nil {
		return fmt.Errorf("construct watcher: %w", err)
	}

	fmt.Println("watching for changes (ctrl-c to stop)...")
	w.Start(ctx)
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			handleWatchEvent(ctx, a, ev)
		}
	}
}

func handleWatchEvent(ctx context.Context, a *app.App, ev watcher.Event) {
	switch ev.Kind {
	case watcher.Deleted:
		if _, err := a.Indexer.RemoveFiles(ctx, []string{ev.RelPath}); err != nil {
			corelog.Event(slog.LevelWarn, "cli.watch_remove_failed", slog.String("path", ev.RelPath), slog.Any("error", err))
		}
	default: // Created, Modified
		if _, err := a.Indexer.ReindexFiles(ctx, []string{ev.RelPath}); err != nil {
			corelog.Event(slog.LevelWarn, "cli.watch_reindex_failed", slog.String("path", ev.RelPath), slog.Any("error", err))
		}
	}
}
