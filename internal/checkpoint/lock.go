package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// fileLock is a thin wrapper around gofrs/flock, grounded on
// Aman-CERP-amanmcp's internal/embed/lock.go, guarding manifest.json and
// settings_fingerprint.hex against concurrent writers across processes.
type fileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path + ".lock", flock: flock.New(path + ".lock")}
}

func (l *fileLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("checkpoint: create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("checkpoint: acquire lock %s: %w", l.path, err)
	}
	l.locked = true
	return nil
}

func (l *fileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("checkpoint: release lock %s: %w", l.path, err)
	}
	l.locked = false
	return nil
}
