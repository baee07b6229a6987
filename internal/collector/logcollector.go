// Package collector implements the Log and Metric Collectors: thin
// parsing layers on top of procstream.Supervisor that turn subprocess
// stdout lines into events.LogEvent and events.MetricEvent values.
package collector

import (
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"observer/internal/events"
	"observer/internal/procstream"
)

// rawLogRecord mirrors the field names emitted by `log stream --style
// json`: camelCase for messageType/processID, snake-case for nothing.
type rawLogRecord struct {
	Timestamp   string `json:"timestamp"`
	MessageType string `json:"messageType"`
	Subsystem   string `json:"subsystem"`
	Category    string `json:"category"`
	Process     string `json:"process"`
	ProcessID   uint32 `json:"processID"`
	Message     string `json:"message"`
}

// logTimestampLayouts are tried in order against the timestamp field;
// macOS's `log stream` emits the first, ISO-8601 covers everything else.
var logTimestampLayouts = []string{
	"2006-01-02 15:04:05.999999-0700",
	time.RFC3339Nano,
	time.RFC3339,
}

// LogCollector drives `log stream` (or an equivalent command supplied
// by CommandBuilder) through a Supervisor and emits parsed LogEvents
// on Events. Malformed records are skipped and logged at debug level;
// they never reach the channel or the supervisor.
type LogCollector struct {
	sup    *procstream.Supervisor
	log    zerolog.Logger
	Events chan events.LogEvent
	runCtx context.Context
}

// NewLogCollector builds a LogCollector running `log stream --predicate
// <filter> --style json`, buffering up to bufferSize unread events.
func NewLogCollector(filter string, bufferSize int, log zerolog.Logger) *LogCollector {
	c := &LogCollector{
		log:    log,
		Events: make(chan events.LogEvent, bufferSize),
		runCtx: context.Background(),
	}
	build := func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "log", "stream", "--predicate", filter, "--style", "json")
	}
	c.sup = procstream.New("log-collector", build, c.handleLine, log)
	return c
}

// Start spawns the supervised subprocess. It probes the command first
// and returns a descriptive error without starting the background
// loop if the probe fails.
func (c *LogCollector) Start(ctx context.Context) error {
	c.runCtx = ctx
	return c.sup.Start(ctx)
}

// Stop terminates the subprocess and waits for the supervisor loop to exit.
func (c *LogCollector) Stop() {
	c.sup.Stop()
}

// handleLine is called on the supervisor's own goroutine; the send to
// Events is guarded by runCtx so a shutdown mid-handoff is treated the
// same as a dropped receiver instead of blocking forever.
func (c *LogCollector) handleLine(line string) {
	event, ok := parseLogRecord(line)
	if !ok {
		c.log.Debug().Str("line", line).Msg("skipping malformed log record")
		return
	}
	select {
	case c.Events <- event:
	case <-c.runCtx.Done():
	}
}

// parseLogRecord parses one `log stream --style json` record into a
// LogEvent. It returns ok=false for malformed JSON, an unparsable
// timestamp, or an unrecognized messageType — the caller skips these
// without propagating an error.
func parseLogRecord(line string) (events.LogEvent, bool) {
	var raw rawLogRecord
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return events.LogEvent{}, false
	}

	ts, ok := parseLogTimestamp(raw.Timestamp)
	if !ok {
		return events.LogEvent{}, false
	}

	msgType, ok := events.ParseMessageType(raw.MessageType)
	if !ok {
		return events.LogEvent{}, false
	}

	return events.LogEvent{
		Timestamp:   ts,
		MessageType: msgType,
		Subsystem:   raw.Subsystem,
		Category:    raw.Category,
		Process:     raw.Process,
		ProcessID:   raw.ProcessID,
		Message:     raw.Message,
	}, true
}

func parseLogTimestamp(raw string) (time.Time, bool) {
	for _, layout := range logTimestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
