package collector

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"observer/internal/events"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestParsePrimaryMetricRecordValid(t *testing.T) {
	line := `{"timestamp": "2024-12-09T18:30:45Z", "cpu_power_mw": 1234.5, "gpu_power_mw": 567.8, "memory_pressure": "Warning"}`

	event, ok := parsePrimaryMetricRecord(line)
	if !ok {
		t.Fatal("expected valid record to parse")
	}
	if event.CPUPowerMW != 1234.5 {
		t.Fatalf("CPUPowerMW = %v, want 1234.5", event.CPUPowerMW)
	}
	if event.GPUPowerMW == nil || *event.GPUPowerMW != 567.8 {
		t.Fatalf("GPUPowerMW = %v, want 567.8", event.GPUPowerMW)
	}
	if event.MemoryPressure != events.MemoryPressureWarning {
		t.Fatalf("MemoryPressure = %v, want Warning", event.MemoryPressure)
	}
}

func TestParsePrimaryMetricRecordNullGPU(t *testing.T) {
	line := `{"timestamp": "2024-12-09T18:30:45Z", "cpu_power_mw": 2000.0, "gpu_power_mw": null, "memory_pressure": "Normal"}`
	event, ok := parsePrimaryMetricRecord(line)
	if !ok {
		t.Fatal("expected valid record to parse")
	}
	if event.GPUPowerMW != nil {
		t.Fatalf("expected nil GPUPowerMW, got %v", *event.GPUPowerMW)
	}
}

func TestParsePrimaryMetricRecordMalformedSkipped(t *testing.T) {
	if _, ok := parsePrimaryMetricRecord("not json"); ok {
		t.Fatal("expected malformed JSON to be skipped")
	}
}

func TestParsePrimaryMetricRecordUnknownPressureSkipped(t *testing.T) {
	line := `{"timestamp": "2024-12-09T18:30:45Z", "cpu_power_mw": 1.0, "memory_pressure": "Bogus"}`
	if _, ok := parsePrimaryMetricRecord(line); ok {
		t.Fatal("expected unrecognized memory_pressure to be skipped")
	}
}

func TestMemoryPressureFromUsedPercentThresholds(t *testing.T) {
	cases := []struct {
		used float64
		want events.MemoryPressure
	}{
		{50, events.MemoryPressureNormal},
		{80, events.MemoryPressureWarning},
		{95, events.MemoryPressureCritical},
	}
	for _, tc := range cases {
		if got := memoryPressureFromUsedPercent(tc.used); got != tc.want {
			t.Errorf("memoryPressureFromUsedPercent(%v) = %v, want %v", tc.used, got, tc.want)
		}
	}
}

func TestMetricCollectorHandleLineForwardsToEvents(t *testing.T) {
	c := NewMetricCollector(DefaultPrimaryCommandBuilder("true"), time.Second, 10, testLogger())
	line := `{"timestamp": "2024-12-09T18:30:45Z", "cpu_power_mw": 10.0, "memory_pressure": "Normal"}`

	c.handleLine(line)

	select {
	case event := <-c.Events:
		if event.CPUPowerMW != 10.0 {
			t.Fatalf("CPUPowerMW = %v, want 10.0", event.CPUPowerMW)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event to be forwarded")
	}
}

// TestMetricCollectorHandleLineAbortsOnShutdownWithFullBuffer guards
// against the unconditional-send deadlock: once runCtx is cancelled,
// handleLine must return even though Events has no room left.
func TestMetricCollectorHandleLineAbortsOnShutdownWithFullBuffer(t *testing.T) {
	c := NewMetricCollector(DefaultPrimaryCommandBuilder("true"), time.Second, 1, testLogger())
	c.Events <- events.MetricEvent{}

	ctx, cancel := context.WithCancel(context.Background())
	c.runCtx = ctx
	cancel()

	line := `{"timestamp": "2024-12-09T18:30:45Z", "cpu_power_mw": 10.0, "memory_pressure": "Normal"}`

	done := make(chan struct{})
	go func() {
		c.handleLine(line)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleLine blocked forever on a full buffer past shutdown")
	}
}

// TestMetricCollectorFallbackSampleAbortsOnShutdownWithFullBuffer guards
// the same unconditional-send deadlock in the fallback ticker loop: a
// cancelled context must let a pending sample's send abort instead of
// blocking forever once Events has no room left.
func TestMetricCollectorFallbackSampleAbortsOnShutdownWithFullBuffer(t *testing.T) {
	c := NewMetricCollector(DefaultPrimaryCommandBuilder("true"), time.Millisecond, 1, testLogger())
	c.Events <- events.MetricEvent{}

	ctx, cancel := context.WithCancel(context.Background())
	c.startFallback(ctx)
	cancel()

	select {
	case <-c.fallbackDone:
	case <-time.After(time.Second):
		t.Fatal("fallback loop blocked forever on a full buffer past shutdown")
	}
}
