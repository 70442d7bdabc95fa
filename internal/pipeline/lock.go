package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/logging"
)

const LockFileName = "pipeline.lock"

// ErrLocked is returned when another run holds a fresh lock.
var ErrLocked = errors.New("another pipeline run is in progress")

// Lock is an exclusive lock file. A lock older than ttl is treated as left
// behind by a crashed run and is taken over.
type Lock struct {
	path   string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewLock(dir string, ttl time.Duration, logger *slog.Logger) *Lock {
	return &Lock{
		path:   filepath.Join(dir, LockFileName),
		ttl:    ttl,
		now:    time.Now,
		logger: logging.OrDefault(logger),
	}
}

func (l *Lock) Path() string { return l.path }

// Acquire creates the lock file holding pid and run id, and returns a
// release func that removes it.
func (l *Lock) Acquire(runID string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "pid=%d run_id=%s acquired=%s\n", os.Getpid(), runID, l.now().UTC().Format(time.RFC3339))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(l.path)
				return nil, fmt.Errorf("write lock: %w", errors.Join(werr, cerr))
			}
			return l.release, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create lock: %w", err)
		}

		info, err := os.Stat(l.path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat lock: %w", err)
		}
		age := l.now().Sub(info.ModTime())
		if age < l.ttl {
			return nil, ErrLocked
		}
		l.logger.Warn("taking over stale pipeline lock", "path", l.path, "age", age.Round(time.Second).String())
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}
	return nil, ErrLocked
}

func (l *Lock) release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
