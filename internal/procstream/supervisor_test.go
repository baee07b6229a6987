package procstream

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSupervisorStreamsLines(t *testing.T) {
	var mu sync.Mutex
	var got []string

	build := func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "printf", "one\ntwo\nthree\n")
	}
	handle := func(line string) {
		mu.Lock()
		got = append(got, line)
		mu.Unlock()
	}

	s := New("test", build, handle, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "one" || got[1] != "two" || got[2] != "three" {
		t.Fatalf("got %v, want [one two three]", got)
	}
}

func TestSupervisorProbeFailsForMissingBinary(t *testing.T) {
	build := func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "/nonexistent/binary/path-xyz")
	}
	s := New("missing", build, func(string) {}, zerolog.Nop())
	if err := s.Probe(context.Background()); err == nil {
		t.Fatal("expected Probe to fail for a nonexistent binary")
	}
}

func TestSupervisorDoubleStartIsNoop(t *testing.T) {
	build := func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "sleep", "1")
	}
	s := New("sleeper", build, func(string) {}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start() should be a no-op, got error: %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("expected supervisor to be running")
	}
	s.Stop()
	if s.IsRunning() {
		t.Fatal("expected supervisor to be stopped")
	}
}
