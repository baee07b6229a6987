package collector

import (
	"context"
	"testing"
	"time"

	"observer/internal/events"
)

func TestParseLogRecordValid(t *testing.T) {
	line := `{"timestamp": "2024-12-09 18:30:45.123456-0800", "messageType": "Error", "subsystem": "com.apple.test", "category": "network", "process": "testproc", "processID": 1234, "message": "connection failed"}`

	event, ok := parseLogRecord(line)
	if !ok {
		t.Fatal("expected valid record to parse")
	}
	if event.MessageType != events.MessageTypeError {
		t.Fatalf("MessageType = %v, want Error", event.MessageType)
	}
	if event.Subsystem != "com.apple.test" || event.Process != "testproc" || event.ProcessID != 1234 {
		t.Fatalf("unexpected fields: %+v", event)
	}
	if event.Message != "connection failed" {
		t.Fatalf("Message = %q", event.Message)
	}
}

func TestParseLogRecordRFC3339Timestamp(t *testing.T) {
	line := `{"timestamp": "2024-12-09T18:30:45Z", "messageType": "Info", "subsystem": "s", "category": "c", "process": "p", "processID": 1, "message": "m"}`
	event, ok := parseLogRecord(line)
	if !ok {
		t.Fatal("expected RFC3339 timestamp to parse")
	}
	if event.Timestamp.Year() != 2024 {
		t.Fatalf("unexpected timestamp: %v", event.Timestamp)
	}
}

func TestParseLogRecordMalformedJSONSkipped(t *testing.T) {
	if _, ok := parseLogRecord("not json at all"); ok {
		t.Fatal("expected malformed JSON to be skipped")
	}
}

func TestParseLogRecordUnknownMessageTypeSkipped(t *testing.T) {
	line := `{"timestamp": "2024-12-09T18:30:45Z", "messageType": "Bogus", "subsystem": "s", "category": "c", "process": "p", "processID": 1, "message": "m"}`
	if _, ok := parseLogRecord(line); ok {
		t.Fatal("expected unrecognized messageType to be skipped")
	}
}

func TestParseLogRecordBadTimestampSkipped(t *testing.T) {
	line := `{"timestamp": "not-a-timestamp", "messageType": "Error", "subsystem": "s", "category": "c", "process": "p", "processID": 1, "message": "m"}`
	if _, ok := parseLogRecord(line); ok {
		t.Fatal("expected unparsable timestamp to be skipped")
	}
}

func TestLogCollectorHandleLineForwardsToEvents(t *testing.T) {
	c := NewLogCollector("messageType == error", 10, testLogger())
	line := `{"timestamp": "2024-12-09T18:30:45Z", "messageType": "Fault", "subsystem": "s", "category": "c", "process": "p", "processID": 1, "message": "boom"}`

	c.handleLine(line)

	select {
	case event := <-c.Events:
		if event.MessageType != events.MessageTypeFault {
			t.Fatalf("MessageType = %v, want Fault", event.MessageType)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event to be forwarded")
	}
}

func TestLogCollectorHandleLineSkipsMalformed(t *testing.T) {
	c := NewLogCollector("messageType == error", 10, testLogger())
	c.handleLine("garbage")

	select {
	case event := <-c.Events:
		t.Fatalf("expected no event to be forwarded, got %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestLogCollectorHandleLineAbortsOnShutdownWithFullBuffer guards against
// the unconditional-send deadlock: once runCtx is cancelled, handleLine
// must return even though Events has no room left for the new event.
func TestLogCollectorHandleLineAbortsOnShutdownWithFullBuffer(t *testing.T) {
	c := NewLogCollector("messageType == error", 1, testLogger())
	c.Events <- events.LogEvent{}

	ctx, cancel := context.WithCancel(context.Background())
	c.runCtx = ctx
	cancel()

	line := `{"timestamp": "2024-12-09T18:30:45Z", "messageType": "Fault", "subsystem": "s", "category": "c", "process": "p", "processID": 1, "message": "boom"}`

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
