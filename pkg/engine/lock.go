package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// fileLock serializes persistence across processes sharing a data
// directory. Portable across Unix and Windows.
type fileLock struct {
	flock *flock.Flock
}

func newFileLock(dir string) *fileLock {
	return &fileLock{flock: flock.New(filepath.Join(dir, ".fathom.lock"))}
}

// Lock blocks until the exclusive lock is held.
func (l *fileLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire data directory lock: %w", err)
	}
	return nil
}

func (l *fileLock) Unlock() error {
	return l.flock.Unlock()
}
