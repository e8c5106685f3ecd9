package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherEmitsModifiedAfterQuietWindow(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "a.py")
	require.NoError(t, os.WriteFile(filePath, []byte("x = 1"), 0o644))

	cfg := DefaultConfig()
	cfg.RootDir = root
	cfg.QuietWindow = 20 * time.Millisecond
	w, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	time.Sleep(30 * time.Millisecond) // let initial directory registration settle
	require.NoError(t, os.WriteFile(filePath, []byte("x = 2"), 0o644))

	select {
	case e := <-w.Events():
		require.Equal(t, "a.py", e.RelPath)
		require.Contains(t, []Kind{Created, Modified}, e.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a watcher event")
	}
}

func TestWatcherCoalescesBurstWrites(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "b.py")
	require.NoError(t, os.WriteFile(filePath, []byte("x = 1"), 0o644))

	cfg := DefaultConfig()
	cfg.RootDir = root
	cfg.QuietWindow = 50 * time.Millisecond
	w, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	time.Sleep(30 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filePath, []byte("x = "+string(rune('0'+i))), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	received := 0
	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case <-w.Events():
			received++
		case <-timeout:
			break loop
		}
	}
	require.Equal(t, 1, received) // 5 rapid writes inside one quiet window coalesce to 1 event
}
