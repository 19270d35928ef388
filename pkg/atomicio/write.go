package atomicio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockTimeout bounds how long a caller waits to acquire a sibling
// ".lock" file before giving up with a retryable error.
const lockTimeout = 30 * time.Second

// LockTimeoutError indicates the advisory lock could not be acquired
// within lockTimeout. Per spec.md §4.2/§7 this is retryable by the
// caller, not fatal.
type LockTimeoutError struct {
	LockPath string
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("timed out acquiring lock %q", e.LockPath)
}

// withLock runs fn while holding an advisory file lock on a sibling
// "<path>.lock" file, creating parent directories as needed.
func withLock(path string, fn func() error) error {
	return WithLockFile(path+".lock", fn)
}

// WithLockFile runs fn while holding an advisory file lock on
// lockPath itself (the caller supplies the full lock file path,
// rather than a sibling derived from a data file). The worker engine
// uses this directly against state_lock_path for per-job claim
// exclusivity (§4.6), which has no associated data file of its own.
func WithLockFile(lockPath string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("create parent dir for lock %q: %w", lockPath, err)
	}
	fl := flock.New(lockPath)

	ctx, cancel := lockContext(lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return &LockTimeoutError{LockPath: lockPath}
	}
	defer fl.Unlock()

	return fn()
}

// AtomicWriteFile writes data to path via a sibling temp file that is
// flushed, fsynced, and then renamed over the target. Parent
// directories are created on demand. On success no temp file remains;
// on any failure before the rename the original file (if any) is
// untouched.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent dir for %q: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	tmpPath := tmp.Name()
	// Ensure the temp file never lingers, success or failure.
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file for %q: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("fsync temp file for %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %q: %w", path, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file for %q: %w", path, err)
	}

	// Rename overwrites the target atomically on every platform Go
	// supports for same-directory renames (os.Rename maps to an
	// overwriting rename primitive on POSIX and to MoveFileEx with
	// MOVEFILE_REPLACE_EXISTING on Windows).
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file into place for %q: %w", path, err)
	}
	return nil
}
