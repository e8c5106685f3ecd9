package failover

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeweaver/core/internal/stats"
	"github.com/codeweaver/core/internal/vectorstore"
	"github.com/codeweaver/core/internal/vectorstore/memory"
	"github.com/codeweaver/core/internal/vectorstore/primary"
)

type fixedSizer struct{ n int }

func (f fixedSizer) EstimatedChunkCount() int { return f.n }

func newGuardedPrimary(t *testing.T, st *stats.Statistics) *vectorstore.Guarded {
	t.Helper()
	store := primary.New()
	require.NoError(t, store.EnsureCollection(context.Background(), "code", &vectorstore.VectorConfig{Dimension: 4, Metric: "cos"}, nil))
	return vectorstore.NewGuarded(store, st)
}

func TestClassifyMemoryZoneGreen(t *testing.T) {
	st := stats.New()
	m := New(DefaultConfig(), newGuardedPrimary(t, st), memory.New(), fixedSizer{n: 10}, nil)
	zone, _ := m.classifyMemoryZone()
	require.Equal(t, ZoneGreen, zone)
}

func TestClassifyMemoryZoneRedRefusesUnlessOverridden(t *testing.T) {
	st := stats.New()
	m := New(DefaultConfig(), newGuardedPrimary(t, st), memory.New(), fixedSizer{n: 10_000_000}, nil)
	zone, _ := m.classifyMemoryZone()
	require.Equal(t, ZoneRed, zone)

	m.cfg.MaxMemoryMB = 1 << 20 // an absurdly high override permits activation
	zone, _ = m.classifyMemoryZone()
	require.NotEqual(t, ZoneRed, zone)
}

func TestActivateBackupRefusesWhenConfiguredCeilingIsTooSmall(t *testing.T) {
	st := stats.New()
	cfg := DefaultConfig()
	cfg.MaxMemoryMB = 2048 // S5: 2 GiB configured, ~8 GiB needed
	guardedPrimary := newGuardedPrimary(t, st)
	m := New(cfg, guardedPrimary, memory.New(), fixedSizer{n: 800_000}, nil)

	zone, _ := m.classifyMemoryZone()
	require.Equal(t, ZoneRed, zone)

	for i := 0; i < 3; i++ {
		guardedPrimary.Breaker().RecordResult(errConnRefused{}, true)
	}
	m.tick(context.Background())

	require.Equal(t, StatePrimaryActive, m.State(), "red-zone refusal must not promote the backup")
	require.True(t, m.MemoryRefused())
}

func TestActivateBackupOnBreakerOpen(t *testing.T) {
	st := stats.New()
	guardedPrimary := newGuardedPrimary(t, st)
	backup := memory.New()
	m := New(DefaultConfig(), guardedPrimary, backup, fixedSizer{n: 1}, nil)
	require.Equal(t, StatePrimaryActive, m.State())

	for i := 0; i < 3; i++ {
		guardedPrimary.Breaker().RecordResult(errConnRefused{}, true)
	}
	require.Equal(t, vectorstore.StateOpen, guardedPrimary.Breaker().State())

	m.tick(context.Background())
	require.Equal(t, StateBackupActive, m.State())
	require.Equal(t, backup, m.ActiveStore())
}

func TestRestorePrimaryRequiresProbeAndDelay(t *testing.T) {
	st := stats.New()
	guardedPrimary := newGuardedPrimary(t, st)
	cfg := DefaultConfig()
	cfg.RestoreDelay = 10 * time.Millisecond
	probed := false
	m := New(cfg, guardedPrimary, memory.New(), fixedSizer{n: 1}, func(ctx context.Context) bool {
		probed = true
		return true
	})

	m.mu.Lock()
	m.state = StateBackupActive
	m.mu.Unlock()

	m.tick(context.Background()) // starts the closed-since clock, too soon to restore
	require.Equal(t, StateBackupActive, m.State())

	time.Sleep(15 * time.Millisecond)
	m.tick(context.Background())
	require.Equal(t, StatePrimaryActive, m.State())
	require.True(t, probed)
}

type errConnRefused struct{}

func (errConnRefused) Error() string { return "connection refused" }
