// Package failover implements the FailoverManager (§4.6): it keeps
// retrieval serving when the primary vector store's circuit breaker
// opens by promoting an in-memory backup store, periodically syncs the
// primary into a backup file, and re-promotes the primary once it has
// recovered and passed a direct health probe.
//
// Grounded on mvp-joe-project-cortex's internal/indexer/watcher.go for
// the background-loop shape (select on ctx.Done/stop channel/ticker,
// "log and continue" on a single cycle's error rather than aborting the
// loop) and on internal/vectorstore for the breaker and store contracts
// this manager drives.
package failover

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeweaver/core/internal/corelog"
	"github.com/codeweaver/core/internal/vectorstore"
	"github.com/codeweaver/core/internal/vectorstore/memory"
)

// State is one of the two states named in §4.6.
type State string

const (
	StatePrimaryActive State = "PRIMARY_ACTIVE"
	StateBackupActive  State = "BACKUP_ACTIVE"
)

// Zone is a memory-safety classification for activating the backup store
// (§4.6 "Memory safety").
type Zone string

const (
	ZoneGreen  Zone = "green"
	ZoneYellow Zone = "yellow"
	ZoneRed    Zone = "red"
)

const (
	bytesPerChunkEstimate = 5 * 1024 // ~5 KiB per chunk, doubled below for headroom
	baseOverheadBytes     = 500 * 1024 * 1024
	yellowThresholdBytes  = 500 * 1024 * 1024
	redThresholdBytes     = 2500 * 1024 * 1024
)

// ManifestSizer reports an estimate of the current chunk count, used for
// the memory-safety pre-flight check; satisfied by the checkpoint
// manifest when available, or a rough file-count-based estimate
// otherwise.
type ManifestSizer interface {
	EstimatedChunkCount() int
}

// Config bundles the tunables §4.6 and §4.6.1 name.
type Config struct {
	RestoreDelay        time.Duration // default 60s
	BackupSyncInterval  time.Duration // default 300s, minimum 30s
	MonitorInterval      time.Duration // default 5s
	MaxMemoryMB         int           // 0 = no override; otherwise a red-zone estimate of at most this many MB is treated as yellow
	BackupFilePath      string
}

// DefaultConfig matches §4.6's stated defaults.
func DefaultConfig() Config {
	return Config{
		RestoreDelay:       60 * time.Second,
		BackupSyncInterval: 300 * time.Second,
		MonitorInterval:    5 * time.Second,
	}
}

// HealthProber performs a direct health probe of the primary store before
// re-promoting it (§4.6: "BACKUP_ACTIVE -> PRIMARY_ACTIVE ... a direct
// health probe succeeds").
type HealthProber func(ctx context.Context) bool

// Manager drives the PRIMARY_ACTIVE/BACKUP_ACTIVE state machine.
type Manager struct {
	cfg     Config
	primary *vectorstore.Guarded
	backup  *memory.Store
	sizer   ManifestSizer
	prober  HealthProber

	mu                sync.RWMutex
	state             State
	primaryClosedSince time.Time
	lastBackupSync    time.Time
	memoryRefused     bool

	stopCh chan struct{}
	wg     sync.WaitGroup
	stop   sync.Once
}

// New constructs a Manager. primary must already be wrapped in
// vectorstore.Guarded so the breaker state is observable; backup is the
// in-memory store this manager promotes to and syncs into.
func New(cfg Config, primary *vectorstore.Guarded, backup *memory.Store, sizer ManifestSizer, prober HealthProber) *Manager {
	initial := StatePrimaryActive
	if primary == nil {
		initial = StateBackupActive
	}
	return &Manager{
		cfg:     cfg,
		primary: primary,
		backup:  backup,
		sizer:   sizer,
		prober:  prober,
		state:   initial,
		stopCh:  make(chan struct{}),
	}
}

// State reports the current failover state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// MemoryRefused reports whether the most recent backup-activation
// attempt was refused on memory-safety grounds (§4.6's red zone). It
// clears on the next successful activation or primary restoration, so
// callers observing it mid-outage know the degradation is deliberate,
// not transient.
func (m *Manager) MemoryRefused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.memoryRefused
}

// ActiveStore returns whichever VectorStore should currently serve reads
// and writes.
func (m *Manager) ActiveStore() vectorstore.VectorStore {
	if m.State() == StateBackupActive {
		return m.backup
	}
	return m.primary
}

// LiveStore adapts a Manager into a vectorstore.VectorStore that always
// delegates to whichever store is active at call time, rather than a
// snapshot taken once at construction (query callers must see a
// mid-flight PRIMARY_ACTIVE -> BACKUP_ACTIVE transition, not a stale
// reference to the store that was active when the Pipeline was built).
type LiveStore struct {
	Manager *Manager
}

func (l LiveStore) Initialize(ctx context.Context) error {
	return l.Manager.ActiveStore().Initialize(ctx)
}

func (l LiveStore) EnsureCollection(ctx context.Context, name string, dense, sparse *vectorstore.VectorConfig) error {
	return l.Manager.ActiveStore().EnsureCollection(ctx, name, dense, sparse)
}

func (l LiveStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	return l.Manager.ActiveStore().Upsert(ctx, collection, points)
}

func (l LiveStore) DeleteByFile(ctx context.Context, collection, relPath string) (int, error) {
	return l.Manager.ActiveStore().DeleteByFile(ctx, collection, relPath)
}

func (l LiveStore) DeleteByID(ctx context.Context, collection string, ids []string) (int, error) {
	return l.Manager.ActiveStore().DeleteByID(ctx, collection, ids)
}

func (l LiveStore) DeleteByName(ctx context.Context, collection string, names []string) (int, error) {
	return l.Manager.ActiveStore().DeleteByName(ctx, collection, names)
}

func (l LiveStore) Search(ctx context.Context, collection string, q vectorstore.SearchQuery) ([]vectorstore.SearchResult, error) {
	return l.Manager.ActiveStore().Search(ctx, collection, q)
}

func (l LiveStore) ListCollections(ctx context.Context) ([]string, error) {
	return l.Manager.ActiveStore().ListCollections(ctx)
}

func (l LiveStore) Scroll(ctx context.Context, collection string, pageSize int) ([]vectorstore.Point, error) {
	return l.Manager.ActiveStore().Scroll(ctx, collection, pageSize)
}

// MemoryRefused passes through Manager.MemoryRefused so a query.Pipeline
// built with a LiveStore can flag a deliberate memory-safety degradation
// (§4.6, §4.9's "backup_refused_memory" warning) without depending on
// the failover package directly.
func (l LiveStore) MemoryRefused() bool {
	return l.Manager.MemoryRefused()
}

// Start launches the monitor loop and the periodic backup-sync loop as
// background goroutines; both survive per-cycle errors by logging and
// continuing, matching the watcher's "log and continue" shape.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(2)
	go m.monitorLoop(ctx)
	go m.syncLoop(ctx)
}

// Stop signals both loops to exit and waits for them.
func (m *Manager) Stop() {
	m.stop.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

func (m *Manager) monitorLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						corelog.Event(slog.LevelError, "failover.monitor.panic", slog.Any("recovered", r))
					}
				}()
				m.tick(ctx)
			}()
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	if m.primary == nil {
		return
	}
	breakerState := m.primary.Breaker().State()

	switch m.State() {
	case StatePrimaryActive:
		if breakerState == vectorstore.StateOpen {
			m.activateBackup(ctx)
			return
		}
		m.mu.Lock()
		if m.primaryClosedSince.IsZero() {
			m.primaryClosedSince = time.Now()
		}
		m.mu.Unlock()

	case StateBackupActive:
		if breakerState != vectorstore.StateClosed {
			m.mu.Lock()
			m.primaryClosedSince = time.Time{}
			m.mu.Unlock()
			return
		}
		m.mu.Lock()
		if m.primaryClosedSince.IsZero() {
			m.primaryClosedSince = time.Now()
		}
		closedFor := time.Since(m.primaryClosedSince)
		m.mu.Unlock()

		if closedFor < m.cfg.RestoreDelay {
			return
		}
		if m.prober != nil && !m.prober(ctx) {
			return
		}
		m.restorePrimary()
	}
}

func (m *Manager) activateBackup(ctx context.Context) {
	zone, estimate := m.classifyMemoryZone()
	if zone == ZoneRed {
		corelog.Event(slog.LevelError, "failover.memory.refused",
			slog.String("zone", string(zone)),
			slog.Int64("estimate_bytes", estimate),
			slog.String("suggestion", "free memory, point at a remote vector store, or shrink the index"))
		m.mu.Lock()
		m.memoryRefused = true
		m.mu.Unlock()
		return // continue serving degraded (dense-only/embeddings-only; §4.9) rather than activate
	}

	if m.cfg.BackupFilePath != "" {
		if err := m.backup.LoadBackup(ctx, m.cfg.BackupFilePath); err != nil {
			corelog.Event(slog.LevelWarn, "failover.backup.load_failed",
				slog.String("path", m.cfg.BackupFilePath), slog.Any("error", err))
			// absent or invalid: start with an empty backup store (§4.6)
		}
	}

	m.mu.Lock()
	m.state = StateBackupActive
	m.primaryClosedSince = time.Time{}
	m.memoryRefused = false
	m.mu.Unlock()

	corelog.Event(slog.LevelWarn, "failover.activated", slog.String("zone", string(zone)))
}

func (m *Manager) restorePrimary() {
	m.mu.Lock()
	m.state = StatePrimaryActive
	m.memoryRefused = false
	m.mu.Unlock()
	corelog.Event(slog.LevelInfo, "failover.restored")
}

// classifyMemoryZone implements §4.6's pre-flight estimate and zone
// boundaries. Zone boundaries are evaluated against the chunk-driven
// portion of the estimate; the fixed 500 MiB baseline is carried in the
// reported total but would otherwise make the green zone unreachable for
// any nonzero chunk count.
func (m *Manager) classifyMemoryZone() (Zone, int64) {
	chunkCount := 0
	if m.sizer != nil {
		chunkCount = m.sizer.EstimatedChunkCount()
	}
	chunkBytes := int64(chunkCount) * bytesPerChunkEstimate * 2
	estimate := chunkBytes + baseOverheadBytes

	zone := ZoneGreen
	switch {
	case chunkBytes < yellowThresholdBytes:
		zone = ZoneGreen
	case chunkBytes <= redThresholdBytes:
		zone = ZoneYellow
	default:
		zone = ZoneRed
	}

	if zone == ZoneRed && m.cfg.MaxMemoryMB > 0 && estimate <= int64(m.cfg.MaxMemoryMB)*1024*1024 {
		// the configured ceiling explicitly accommodates the estimate
		zone = ZoneYellow
	}
	return zone, estimate
}

func (m *Manager) syncLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := m.cfg.BackupSyncInterval
	if interval < 30*time.Second {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.syncOnce(ctx)
		}
	}
}

func (m *Manager) syncOnce(ctx context.Context) {
	if m.State() != StatePrimaryActive {
		return
	}
	if m.primary == nil || m.primary.Breaker().State() != vectorstore.StateClosed {
		return
	}
	if m.cfg.BackupFilePath == "" {
		return
	}

	if err := m.syncPrimaryIntoBackup(ctx); err != nil {
		corelog.Event(slog.LevelWarn, "failover.sync.failed", slog.Any("error", err))
		return
	}

	m.mu.Lock()
	m.lastBackupSync = time.Now()
	m.mu.Unlock()
}

// syncPrimaryIntoBackup scrolls every primary collection into the
// in-memory backup store, then persists that store to the backup file
// (§4.6.1). It passes a page size of 100, but Scroll returns each
// collection whole, so each collection is copied in a single step.
func (m *Manager) syncPrimaryIntoBackup(ctx context.Context) error {
	const pageSize = 100

	names, err := m.primary.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failover: list primary collections: %w", err)
	}

	for _, name := range names {
		points, err := m.primary.Scroll(ctx, name, pageSize)
		if err != nil {
			return fmt.Errorf("failover: scroll collection %s: %w", name, err)
		}
		if err := m.backup.EnsureCollection(ctx, name, &vectorstore.VectorConfig{Metric: "cos"}, nil); err != nil {
			return fmt.Errorf("failover: ensure backup collection %s: %w", name, err)
		}
		if err := m.backup.Upsert(ctx, name, points); err != nil {
			return fmt.Errorf("failover: upsert into backup collection %s: %w", name, err)
		}
	}

	return m.backup.SaveBackup(ctx, m.cfg.BackupFilePath)
}

// LastBackupSync reports when the backup file was last successfully
// written.
func (m *Manager) LastBackupSync() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBackupSync
}
