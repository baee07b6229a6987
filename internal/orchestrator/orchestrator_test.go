package orchestrator

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"observer/internal/config"
	"observer/internal/events"
	"observer/internal/llm"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Buffer.MaxAge = time.Minute
	cfg.Buffer.MaxSize = 100
	return cfg
}

func noopCommand(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, "true")
}

func TestEvaluateAndAnalyzeForwardsInsightOnCrashTrigger(t *testing.T) {
	backend := llm.NewMockBackend()
	backend.AddResult(events.AIInsight{Summary: "kernel panic detected", Severity: events.SeverityCritical})

	o := New(testConfig(), backend, noopCommand, zerolog.Nop())

	o.aggregatorState.AddLog(events.LogEvent{
		Timestamp:   time.Now(),
		MessageType: events.MessageTypeFault,
		Process:     "kernel_task",
		Message:     "kernel panic: out of memory",
	})

	o.evaluateAndAnalyze(context.Background())

	select {
	case insight := <-o.an.Insights:
		if insight.Summary != "kernel panic detected" {
			t.Fatalf("unexpected insight: %+v", insight)
		}
	default:
		t.Fatal("expected an insight to be forwarded after a crash-detection trigger")
	}
}

func TestEvaluateAndAnalyzeNoOpWhenNoRuleFires(t *testing.T) {
	backend := llm.NewMockBackend()
	o := New(testConfig(), backend, noopCommand, zerolog.Nop())

	o.aggregatorState.AddLog(events.LogEvent{
		Timestamp:   time.Now(),
		MessageType: events.MessageTypeInfo,
		Message:     "nothing interesting happened",
	})

	o.evaluateAndAnalyze(context.Background())

	if backend.CallCount() != 0 {
		t.Fatalf("backend.CallCount() = %d, want 0 when no rule fires", backend.CallCount())
	}
	select {
	case insight := <-o.an.Insights:
		t.Fatalf("unexpected insight forwarded: %+v", insight)
	default:
	}
}

func TestEvaluateAndAnalyzeQueuesRetryOnBackendFailure(t *testing.T) {
	backend := llm.NewMockBackend()
	backend.AddError(&llm.BackendError{Kind: llm.ErrorKindTransport, Err: errBoom("unreachable")})

	o := New(testConfig(), backend, noopCommand, zerolog.Nop())
	o.aggregatorState.AddLog(events.LogEvent{
		Timestamp:   time.Now(),
		MessageType: events.MessageTypeFault,
		Message:     "segmentation fault in render thread",
	})

	o.evaluateAndAnalyze(context.Background())

	if o.an.QueueLen() != 1 {
		t.Fatalf("QueueLen() = %d, want 1 after a failed inline analysis", o.an.QueueLen())
	}
}

func TestRunInsightForwarderDeliversCriticalInsightsToDispatcher(t *testing.T) {
	backend := llm.NewMockBackend()
	o := New(testConfig(), backend, noopCommand, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())

	o.wg.Add(1)
	done := make(chan struct{})
	go func() {
		o.runInsightForwarder(ctx)
		close(done)
	}()

	o.an.Insights <- events.AIInsight{Summary: "disk nearly full", Severity: events.SeverityCritical}

	// The insight is either sent immediately or deferred, depending on
	// rate-limiter state; either way it must leave the Insights channel
	// and reach the dispatcher without the forwarder blocking forever.
	time.Sleep(50 * time.Millisecond)
	if n := len(o.an.Insights); n != 0 {
		t.Fatalf("len(Insights) = %d, want 0 after the forwarder drained it", n)
	}
	if total := o.dispatcher.DeferredLen(); total < 0 {
		t.Fatalf("DeferredLen() = %d, want >= 0", total)
	}

	cancel()
	<-done
}

type errBoom string

func (e errBoom) Error() string { return string(e) }
