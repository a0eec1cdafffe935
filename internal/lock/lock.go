// Package lock provides a directory-based mutual exclusion primitive shared
// by every process cooperating on one midden store. Atomic directory
// creation is the only portable test-and-set a plain filesystem offers, so
// a held lock is a marker directory containing an owner record; acquisition
// polls until the marker can be created or the timeout elapses.
//
// Crashed holders are handled by stale reclamation: a marker whose recorded
// owner process is dead on this host, or whose age exceeds the configured
// maximum, is forcibly removed and acquisition retried. This assumes all
// cooperating processes share one host (or one NFS-consistent mount); the
// liveness probe only consults the local process table.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	// ownerFile is the record written inside a marker directory identifying
	// the holder.
	ownerFile = "owner.json"
)

// Manager acquires and releases locks rooted at a single directory.
// Each distinct key maps to one marker directory under the root.
type Manager struct {
	dir string
}

// Options control one acquisition attempt.
type Options struct {
	Timeout      time.Duration // Total time to wait before giving up
	PollInterval time.Duration // Sleep between attempts
	MaxAge       time.Duration // Markers older than this are reclaimed; 0 disables age-based reclamation
}

// Handle is the guard for one held lock. It is returned by Acquire and must
// be released on every exit path; Release is idempotent so deferring it is
// always safe.
type Handle struct {
	path     string
	owner    ownerRecord
	released bool
}

type ownerRecord struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	Token      string    `json:"token"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// TimeoutError indicates a lock could not be acquired within the timeout.
type TimeoutError struct {
	Key     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for lock '%s'", e.Timeout, e.Key)
}

// IsTimeout returns true if the error is a lock acquisition timeout.
func IsTimeout(err error) bool {
	_, ok := err.(*TimeoutError)
	return ok
}

// NewManager creates a Manager rooted at dir, creating dir if needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Acquire takes the lock for key, polling until it is free or opts.Timeout
// elapses. The key must already be path-safe; callers validate identifiers
// before any lock key is formed.
func (m *Manager) Acquire(key string, opts Options) (*Handle, error) {
	if key == "" {
		return nil, fmt.Errorf("lock key cannot be empty")
	}

	path := filepath.Join(m.dir, key)
	deadline := time.Now().Add(opts.Timeout)

	for {
		handle, err := m.tryAcquire(key, path)
		if err == nil {
			return handle, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock marker for '%s': %w", key, err)
		}

		// Marker exists: reclaim it if the holder is gone, otherwise wait.
		if m.reclaimIfStale(path, opts.MaxAge) {
			continue
		}

		if time.Now().After(deadline) {
			return nil, &TimeoutError{Key: key, Timeout: opts.Timeout}
		}
		time.Sleep(opts.PollInterval)
	}
}

// tryAcquire attempts one atomic marker creation. On success the owner
// record is written inside the marker before the handle is returned.
func (m *Manager) tryAcquire(key, path string) (*Handle, error) {
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	owner := ownerRecord{
		PID:        os.Getpid(),
		Hostname:   hostname,
		Token:      uuid.New().String(),
		AcquiredAt: time.Now().UTC(),
	}

	data, err := json.Marshal(owner)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to marshal owner record: %w", err)
	}

	if err := os.WriteFile(filepath.Join(path, ownerFile), data, 0o644); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write owner record: %w", err)
	}

	return &Handle{path: path, owner: owner}, nil
}

// reclaimIfStale removes the marker at path if its holder has abandoned it.
// Returns true if the marker was removed and acquisition should be retried
// immediately.
func (m *Manager) reclaimIfStale(path string, maxAge time.Duration) bool {
	owner, err := readOwner(path)
	if err != nil {
		// Owner record missing or unreadable. Either the holder crashed
		// between Mkdir and WriteFile, or we raced its removal. Fall back
		// to the marker's age.
		info, statErr := os.Lstat(path)
		if statErr != nil {
			// Marker vanished: free to retry.
			return true
		}
		if maxAge > 0 && time.Since(info.ModTime()) > maxAge {
			return os.RemoveAll(path) == nil
		}
		return false
	}

	hostname, _ := os.Hostname()
	if owner.Hostname == hostname && !processAlive(owner.PID) {
		return os.RemoveAll(path) == nil
	}

	if maxAge > 0 && time.Since(owner.AcquiredAt) > maxAge {
		return os.RemoveAll(path) == nil
	}

	return false
}

// Release removes the lock marker. Only the owner that acquired the lock
// may release it: the on-disk owner token is compared against the handle's
// before removal, so a reclaimed-and-reacquired lock is never removed by
// the previous holder. Safe to call multiple times.
func (h *Handle) Release() error {
	if h == nil || h.released {
		return nil
	}
	h.released = true

	current, err := readOwner(h.path)
	if err != nil {
		// Marker already gone (reclaimed after we were declared stale).
		return nil
	}

	if current.Token != h.owner.Token {
		return fmt.Errorf("lock at '%s' is no longer held by this handle", h.path)
	}

	if err := os.RemoveAll(h.path); err != nil {
		return fmt.Errorf("failed to remove lock marker: %w", err)
	}

	return nil
}

// Path returns the marker directory for this handle. Exposed for tests.
func (h *Handle) Path() string {
	return h.path
}

func readOwner(path string) (*ownerRecord, error) {
	data, err := os.ReadFile(filepath.Join(path, ownerFile))
	if err != nil {
		return nil, err
	}

	var owner ownerRecord
	if err := json.Unmarshal(data, &owner); err != nil {
		return nil, fmt.Errorf("corrupt owner record: %w", err)
	}

	return &owner, nil
}

// processAlive reports whether pid exists on this host. Signal 0 probes
// without delivering anything; EPERM still means the process exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
