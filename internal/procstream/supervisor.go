// Package procstream runs an external command as a continuously
// supervised line source: it restarts the subprocess with exponential
// backoff on failure, escalating into a degraded polling mode after
// repeated consecutive failures, and hands complete lines to a
// caller-supplied handler as they arrive.
package procstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const (
	maxConsecutiveFailures = 5
	degradedModeDelay      = 60 * time.Second
)

// CommandBuilder constructs the *exec.Cmd to run on each (re)start. It is
// called once per attempt so a fresh Cmd (and fresh pipes) is produced
// every time, the way the original predicate-driven "log stream" spawn
// builds a new child process each attempt.
type CommandBuilder func(ctx context.Context) *exec.Cmd

// LineHandler processes one line of subprocess stdout. It must not
// block indefinitely; the supervisor calls it synchronously from its
// own goroutine.
type LineHandler func(line string)

// Supervisor manages the lifetime of a single supervised subprocess.
type Supervisor struct {
	name    string
	build   CommandBuilder
	handle  LineHandler
	log     zerolog.Logger
	running atomic.Bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Supervisor that builds commands with build and hands
// each stdout line to handle.
func New(name string, build CommandBuilder, handle LineHandler, log zerolog.Logger) *Supervisor {
	return &Supervisor{name: name, build: build, handle: handle, log: log}
}

// Probe spawns and immediately kills one instance of the command,
// verifying the subprocess can even start before committing to the
// background supervision loop. Mirrors the original collector's
// test-spawn-then-kill check in Start.
func (s *Supervisor) Probe(ctx context.Context) error {
	cmd := s.build(ctx)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("probe spawn %s: %w", s.name, err)
	}
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
	return nil
}

// Start begins supervision in a background goroutine. It returns
// immediately; call Stop to shut down.
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil // already running
	}

	if err := s.Probe(ctx); err != nil {
		s.running.Store(false)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.superviseLoop(runCtx)

	s.log.Info().Str("component", s.name).Msg("supervisor started")
	return nil
}

// Stop signals the supervision loop to exit and waits for it to finish.
func (s *Supervisor) Stop() {
	if !s.running.Load() {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.running.Store(false)
	s.log.Info().Str("component", s.name).Msg("supervisor stopped")
}

// IsRunning reports whether the supervision loop is active.
func (s *Supervisor) IsRunning() bool {
	return s.running.Load()
}

func (s *Supervisor) superviseLoop(ctx context.Context) {
	defer s.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 60 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	consecutiveFailures := 0

	for ctx.Err() == nil {
		healthy := s.runOnce(ctx)
		if ctx.Err() != nil {
			break
		}

		if healthy {
			consecutiveFailures = 0
			bo.Reset()
		}
		// Every exit not caused by shutdown is paced by the backoff, so a
		// command that exits cleanly is not respawned in a tight loop.
		consecutiveFailures++

		if consecutiveFailures >= maxConsecutiveFailures {
			s.log.Warn().Str("component", s.name).Int("failures", consecutiveFailures).
				Msg("too many consecutive failures, entering degraded mode")
			s.sleepInterruptible(ctx, degradedModeDelay)
			consecutiveFailures = 0
			bo.Reset()
			continue
		}

		delay := bo.NextBackOff()
		s.log.Warn().Str("component", s.name).Dur("delay", delay).
			Int("failure", consecutiveFailures).Msg("restarting after failure")
		s.sleepInterruptible(ctx, delay)
	}
}

// sleepInterruptible waits for d, returning early if ctx is cancelled
// so shutdown stays responsive.
func (s *Supervisor) sleepInterruptible(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// runOnce spawns one subprocess instance, streams its stdout through
// the line handler until EOF or shutdown, and reports whether the run
// was healthy (exited cleanly on its own, or was deliberately stopped).
func (s *Supervisor) runOnce(ctx context.Context) (healthy bool) {
	cmd := s.build(ctx)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.log.Error().Err(err).Str("component", s.name).Msg("failed to open stdout pipe")
		return false
	}

	if err := cmd.Start(); err != nil {
		s.log.Error().Err(err).Str("component", s.name).Msg("failed to spawn subprocess")
		return false
	}
	s.log.Info().Str("component", s.name).Msg("subprocess started")

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.consumeLines(stdout)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return true // deliberate shutdown counts as healthy
	}
	if waitErr != nil {
		s.log.Warn().Err(waitErr).Str("component", s.name).Msg("subprocess exited with error")
		return false
	}
	s.log.Debug().Str("component", s.name).Msg("subprocess exited normally")
	return true
}

// consumeLines reads r line by line, replacing invalid UTF-8 rather
// than failing the whole stream, and forwards each non-empty line to
// the handler. Malformed individual records are the handler's concern
// to skip; this layer only guarantees well-formed lines of text.
func (s *Supervisor) consumeLines(r io.Reader) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		trimmed := trimNewline(line)
		if trimmed != "" {
			s.handle(sanitizeUTF8(trimmed))
		}
		if err != nil {
			return
		}
	}
}

func trimNewline(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// sanitizeUTF8 replaces invalid byte sequences with utf8.RuneError's
// replacement character instead of discarding the line, mirroring the
// original reader's lossy UTF-8 decode of raw subprocess bytes.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b []byte
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b = append(b, "�"...)
			i++
			continue
		}
		b = append(b, s[i:i+size]...)
		i += size
	}
	return string(b)
}
