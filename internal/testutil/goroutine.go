package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// Baseline lets finished goroutines from earlier tests drain and returns the current count.
func Baseline() int {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	return runtime.NumGoroutine()
}

// AssertNoGoroutineLeaks checks that the goroutine count returns to baseline within timeout.
func AssertNoGoroutineLeaks(t testing.TB, baseline, margin int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+margin {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("goroutine leak: baseline=%d, current=%d, margin=%d", baseline, runtime.NumGoroutine(), margin)
}

// SocketPath returns a unix socket path in a fresh directory removed at cleanup.
// The directory is kept short because socket paths are limited to ~108 bytes.
func SocketPath(t testing.TB) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "frelay")
	if err != nil {
		t.Fatalf("create socket dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "relay.sock")
}
