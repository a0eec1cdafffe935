package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testOptions() Options {
	return Options{
		Timeout:      2 * time.Second,
		PollInterval: 5 * time.Millisecond,
		MaxAge:       time.Minute,
	}
}

// TestAcquireRelease tests the basic lifecycle: marker appears on acquire
// and disappears on release
func TestAcquireRelease(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	handle, err := m.Acquire("blog-post--post-1", testOptions())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if _, err := os.Stat(handle.Path()); err != nil {
		t.Errorf("expected lock marker to exist: %v", err)
	}

	if err := handle.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}

	if _, err := os.Stat(handle.Path()); !os.IsNotExist(err) {
		t.Error("expected lock marker to be removed after release")
	}
}

// TestReleaseIdempotent tests that double release is safe
func TestReleaseIdempotent(t *testing.T) {
	m, _ := NewManager(t.TempDir())
	handle, err := m.Acquire("key", testOptions())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := handle.Release(); err != nil {
		t.Errorf("first Release failed: %v", err)
	}
	if err := handle.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got: %v", err)
	}
}

// TestAcquireTimeout tests that a held lock times out a second acquirer
func TestAcquireTimeout(t *testing.T) {
	m, _ := NewManager(t.TempDir())

	handle, err := m.Acquire("contested", testOptions())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer handle.Release()

	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond

	_, err = m.Acquire("contested", opts)
	if err == nil {
		t.Fatal("expected second Acquire to time out, but it succeeded")
	}
	if !IsTimeout(err) {
		t.Errorf("expected a timeout error, got: %v", err)
	}
}

// TestMutualExclusion tests that the lock serializes concurrent critical
// sections within one process
func TestMutualExclusion(t *testing.T) {
	m, _ := NewManager(t.TempDir())

	const workers = 10
	var wg sync.WaitGroup
	var inCritical, maxInCritical int
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			handle, err := m.Acquire("shared", testOptions())
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer handle.Release()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}

	wg.Wait()

	if maxInCritical != 1 {
		t.Errorf("expected at most 1 holder at a time, observed %d", maxInCritical)
	}
}

// TestStaleReclamation_DeadOwner tests that a marker owned by a dead
// process on this host is reclaimed
func TestStaleReclamation_DeadOwner(t *testing.T) {
	dir := t.TempDir()
	m, _ := NewManager(dir)

	// Forge a marker held by a process that cannot exist.
	path := filepath.Join(dir, "stale")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("failed to forge marker: %v", err)
	}
	hostname, _ := os.Hostname()
	owner := ownerRecord{
		PID:        1 << 30, // beyond any real pid space
		Hostname:   hostname,
		Token:      "forged",
		AcquiredAt: time.Now().UTC(),
	}
	data, _ := json.Marshal(owner)
	if err := os.WriteFile(filepath.Join(path, ownerFile), data, 0o644); err != nil {
		t.Fatalf("failed to write forged owner: %v", err)
	}

	handle, err := m.Acquire("stale", testOptions())
	if err != nil {
		t.Fatalf("expected stale marker to be reclaimed, got: %v", err)
	}
	handle.Release()
}

// TestStaleReclamation_MaxAge tests age-based reclamation for markers
// held by live processes (e.g. on another host)
func TestStaleReclamation_MaxAge(t *testing.T) {
	dir := t.TempDir()
	m, _ := NewManager(dir)

	path := filepath.Join(dir, "aged")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("failed to forge marker: %v", err)
	}
	owner := ownerRecord{
		PID:        os.Getpid(), // alive, so only age can reclaim it
		Hostname:   "elsewhere",
		Token:      "forged",
		AcquiredAt: time.Now().UTC().Add(-10 * time.Minute),
	}
	data, _ := json.Marshal(owner)
	if err := os.WriteFile(filepath.Join(path, ownerFile), data, 0o644); err != nil {
		t.Fatalf("failed to write forged owner: %v", err)
	}

	handle, err := m.Acquire("aged", testOptions())
	if err != nil {
		t.Fatalf("expected aged marker to be reclaimed, got: %v", err)
	}
	handle.Release()
}

// TestReleaseOnlyOwner tests that a handle does not remove a marker it no
// longer owns (reclaimed and re-acquired by someone else)
func TestReleaseOnlyOwner(t *testing.T) {
	dir := t.TempDir()
	m, _ := NewManager(dir)

	first, err := m.Acquire("key", testOptions())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Simulate reclamation: replace the marker behind the first handle.
	os.RemoveAll(first.Path())
	second, err := m.Acquire("key", testOptions())
	if err != nil {
		t.Fatalf("re-Acquire failed: %v", err)
	}

	if err := first.Release(); err == nil {
		t.Error("expected Release by the superseded handle to fail")
	}

	if _, err := os.Stat(second.Path()); err != nil {
		t.Errorf("second holder's marker should be untouched: %v", err)
	}

	if err := second.Release(); err != nil {
		t.Errorf("second holder's Release failed: %v", err)
	}
}
