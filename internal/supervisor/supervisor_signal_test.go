//go:build !windows

package supervisor

import (
	"io"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestSignalTriggersCleanShutdown(t *testing.T) {
	rec := newExitRecorder()
	s := New(rec.exit)
	s.HandleSignals()

	if _, err := s.Start("sh", []string{"-c", "sleep 30"}, "", "backend", io.Discard, io.Discard); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to signal self: %v", err)
	}

	select {
	case code := <-rec.fired:
		if code != 0 {
			t.Errorf("exit code = %d, want 0 for an interrupt", code)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("signal never triggered shutdown")
	}

	// A repeat signal after the shutdown must not run anything again.
	syscall.Kill(os.Getpid(), syscall.SIGTERM)
	time.Sleep(200 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Errorf("exit called %d times, want exactly 1", got)
	}
}
