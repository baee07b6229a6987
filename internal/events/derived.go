package events

import "time"

// TriggerContext is produced by the trigger engine at the moment a rule
// fires. RelevantLogs and RelevantMetrics are owned snapshots — copies,
// not references into the aggregator's buffers — so the aggregator may
// keep mutating after a context is handed off for analysis.
type TriggerContext struct {
	TriggerTime      time.Time
	RuleName         string
	ExpectedSeverity Severity
	Reason           string
	RelevantLogs     []LogEvent
	RelevantMetrics  []MetricEvent
}

// AIInsight is the structured result of a successful backend analysis.
type AIInsight struct {
	AnalysisTime    time.Time
	Summary         string
	RootCause       *string
	Recommendations []string
	Severity        Severity
}

// RetryEntry pairs a TriggerContext with its retry bookkeeping inside
// the analyzer's retry queue.
type RetryEntry struct {
	ID            string
	Context       TriggerContext
	AttemptCount  int
	NextRetryTime time.Time
}
