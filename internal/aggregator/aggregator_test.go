package aggregator

import (
	"testing"
	"time"

	"observer/internal/events"
)

func testLogEvent(ts time.Time) events.LogEvent {
	return events.LogEvent{
		Timestamp:   ts,
		MessageType: events.MessageTypeError,
		Subsystem:   "com.example.test",
		Category:    "test",
		Process:     "testd",
		ProcessID:   1234,
		Message:     "test message",
	}
}

func testMetricEvent(ts time.Time) events.MetricEvent {
	return events.MetricEvent{
		Timestamp:       ts,
		CPUPowerMW:      1234.5,
		CPUUsagePercent: 60,
		MemoryPressure:  events.MemoryPressureNormal,
		MemoryUsedMB:    4096,
		EnergyImpact:    1802.3,
	}
}

func TestAddAndRetrieveLogs(t *testing.T) {
	a := New(60*time.Second, 100)
	now := time.Now()
	a.AddLog(testLogEvent(now))

	recent := a.GetRecentLogs(60 * time.Second)
	if len(recent) != 1 {
		t.Fatalf("len(recent) = %d, want 1", len(recent))
	}
	if recent[0].Message != "test message" {
		t.Fatalf("unexpected message: %q", recent[0].Message)
	}
}

func TestAddAndRetrieveMetrics(t *testing.T) {
	a := New(60*time.Second, 100)
	now := time.Now()
	a.AddMetric(testMetricEvent(now))

	recent := a.GetRecentMetrics(60 * time.Second)
	if len(recent) != 1 {
		t.Fatalf("len(recent) = %d, want 1", len(recent))
	}
	if recent[0].CPUPowerMW != 1234.5 {
		t.Fatalf("unexpected CPUPowerMW: %v", recent[0].CPUPowerMW)
	}
}

func TestTimeBasedFiltering(t *testing.T) {
	a := New(60*time.Second, 100)
	now := time.Now()

	a.AddLog(testLogEvent(now.Add(-70 * time.Second)))
	a.AddLog(testLogEvent(now.Add(-30 * time.Second)))

	recent := a.GetRecentLogs(60 * time.Second)
	if len(recent) != 1 {
		t.Fatalf("len(recent) = %d, want 1", len(recent))
	}
}

func TestCapacityEnforcement(t *testing.T) {
	a := New(60*time.Second, 5)
	now := time.Now()

	for i := 0; i < 10; i++ {
		a.AddLog(testLogEvent(now.Add(time.Duration(i) * time.Second)))
	}

	all := a.GetRecentLogs(60 * time.Second)
	if len(all) != 5 {
		t.Fatalf("len(all) = %d, want 5", len(all))
	}
	if !all[len(all)-1].Timestamp.Equal(now.Add(9 * time.Second)) {
		t.Fatalf("expected the most recent event retained, got %v", all[len(all)-1].Timestamp)
	}
}

func TestPruneOldEntries(t *testing.T) {
	a := New(60*time.Second, 100)
	now := time.Now()

	for i := 0; i < 5; i++ {
		a.AddLog(testLogEvent(now.Add(-time.Duration(70+i) * time.Second)))
	}
	for i := 0; i < 5; i++ {
		a.AddLog(testLogEvent(now.Add(-time.Duration(30+i) * time.Second)))
	}

	a.PruneOldEntries()

	all := a.GetRecentLogs(100 * time.Second)
	if len(all) != 5 {
		t.Fatalf("len(all) = %d, want 5", len(all))
	}
}
