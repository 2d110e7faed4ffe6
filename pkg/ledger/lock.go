package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock serializes crawl runs against one ledger file.
type RunLock struct {
	path string
	lock *flock.Flock
}

// AcquireRunLock takes the lock next to the ledger at ledgerPath without
// blocking. It returns ErrLocked when another run holds it.
func AcquireRunLock(ledgerPath string) (*RunLock, error) {
	lockPath := ledgerPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
	}
	return &RunLock{path: lockPath, lock: fl}, nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.path
}

// Release drops the lock.
func (l *RunLock) Release() error {
	return l.lock.Unlock()
}
