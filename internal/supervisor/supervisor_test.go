package supervisor

import (
	"io"
	"runtime"
	"sync"
	"testing"
	"time"
)

func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests use sh")
	}
}

// exitRecorder stands in for os.Exit and counts invocations.
type exitRecorder struct {
	mu    sync.Mutex
	codes []int
	fired chan int
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{fired: make(chan int, 4)}
}

func (r *exitRecorder) exit(code int) {
	r.mu.Lock()
	r.codes = append(r.codes, code)
	r.mu.Unlock()
	r.fired <- code
}

func (r *exitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

func TestChildExitCodeCascades(t *testing.T) {
	requirePOSIX(t)

	rec := newExitRecorder()
	s := New(rec.exit)

	sleeper, err := s.Start("sh", []string{"-c", "sleep 30"}, "", "frontend", io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("Start(sleeper) error: %v", err)
	}
	if _, err := s.Start("sh", []string{"-c", "exit 7"}, "", "backend", io.Discard, io.Discard); err != nil {
		t.Fatalf("Start(failing) error: %v", err)
	}

	select {
	case code := <-rec.fired:
		if code != 7 {
			t.Errorf("exit code = %d, want the triggering child's 7", code)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown never completed")
	}

	// The sibling must have been terminated as part of the cascade.
	select {
	case <-sleeper.waited:
	case <-time.After(2 * time.Second):
		t.Error("sibling child still running after shutdown")
	}

	if s.State() != Stopped {
		t.Errorf("state = %v, want Stopped", s.State())
	}
}

func TestCleanChildExitShutsDownWithZero(t *testing.T) {
	requirePOSIX(t)

	rec := newExitRecorder()
	s := New(rec.exit)

	if _, err := s.Start("sh", []string{"-c", "exit 0"}, "", "backend", io.Discard, io.Discard); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case code := <-rec.fired:
		if code != 0 {
			t.Errorf("exit code = %d, want 0 for an intentional stop", code)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown never completed")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	requirePOSIX(t)

	rec := newExitRecorder()
	s := New(rec.exit)

	if _, err := s.Start("sh", []string{"-c", "sleep 30"}, "", "backend", io.Discard, io.Discard); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Two concurrent triggers, plus the terminated child's own exit event
	// racing the teardown: exactly one shutdown may run.
	go s.Shutdown(0)
	s.Shutdown(0)

	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown never completed")
	}

	// Give the child's watch goroutine time to observe the exit.
	time.Sleep(200 * time.Millisecond)

	if got := rec.count(); got != 1 {
		t.Errorf("exit called %d times, want exactly 1", got)
	}
}

func TestGraceTimeoutKillsEveryStubbornChild(t *testing.T) {
	requirePOSIX(t)

	rec := newExitRecorder()
	s := New(rec.exit)

	// Both children ignore SIGTERM, so each has to be force-killed. The
	// second kill must still happen after the first child has used up the
	// grace window.
	script := `trap '' TERM; sleep 60`
	first, err := s.Start("sh", []string{"-c", script}, "", "backend", io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("Start(first) error: %v", err)
	}
	second, err := s.Start("sh", []string{"-c", script}, "", "frontend", io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("Start(second) error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Shutdown(0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * stopGrace):
		t.Fatal("shutdown stuck past the grace window")
	}

	for _, child := range []*Child{first, second} {
		select {
		case <-child.waited:
		default:
			t.Errorf("%s still running after shutdown", child.Label)
		}
	}
	if got := rec.count(); got != 1 {
		t.Errorf("exit called %d times, want exactly 1", got)
	}
}

func TestStateListenerSeesChildFailure(t *testing.T) {
	requirePOSIX(t)

	type event struct {
		label           string
		running, failed bool
	}
	var mu sync.Mutex
	var events []event

	rec := newExitRecorder()
	s := New(rec.exit)
	s.OnStateChange = func(label string, running, failed bool) {
		mu.Lock()
		events = append(events, event{label, running, failed})
		mu.Unlock()
	}

	if _, err := s.Start("sh", []string{"-c", "exit 3"}, "", "backend", io.Discard, io.Discard); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case <-rec.fired:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) < 2 {
		t.Fatalf("got %d events, want start and stop", len(events))
	}
	if start := events[0]; start.label != "backend" || !start.running || start.failed {
		t.Errorf("start event = %+v, want running and not failed", start)
	}
	if stop := events[len(events)-1]; stop.running || !stop.failed {
		t.Errorf("stop event = %+v, want a reported failure for exit 3", stop)
	}
}

type fakeListener struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeListener) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func TestShutdownClosesRegisteredClosers(t *testing.T) {
	requirePOSIX(t)

	rec := newExitRecorder()
	s := New(rec.exit)
	ln := &fakeListener{}
	s.RegisterCloser(ln)

	s.Shutdown(0)

	ln.mu.Lock()
	defer ln.mu.Unlock()
	if ln.closed != 1 {
		t.Errorf("listener closed %d times, want 1", ln.closed)
	}
}

func TestStartRefusedAfterShutdown(t *testing.T) {
	requirePOSIX(t)

	rec := newExitRecorder()
	s := New(rec.exit)
	s.Shutdown(0)

	if _, err := s.Start("sh", []string{"-c", "exit 0"}, "", "late", io.Discard, io.Discard); err == nil {
		t.Error("Start() after shutdown should fail")
	}
}
