package triggers

import (
	"time"

	"observer/internal/events"
)

// Engine evaluates a flat, ordered list of rules against the same
// event snapshot. Rules are independent and pure; registration order
// decides which rule's Trigger Context is produced when more than one
// would otherwise fire on the same snapshot.
type Engine struct {
	rules []Rule
}

// NewEngine constructs an Engine evaluating rules in the given order.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Evaluate runs rules in registration order and returns the Trigger
// Context produced by the first rule that fires, or ok=false if none
// fires.
func (e *Engine) Evaluate(logs []events.LogEvent, metrics []events.MetricEvent) (ctx events.TriggerContext, ok bool) {
	for _, rule := range e.rules {
		fired, reason := rule.Evaluate(logs, metrics)
		if !fired {
			continue
		}
		return events.TriggerContext{
			TriggerTime:      time.Now(),
			RuleName:         rule.Name(),
			ExpectedSeverity: rule.Severity(),
			Reason:           reason,
			RelevantLogs:     append([]events.LogEvent(nil), logs...),
			RelevantMetrics:  append([]events.MetricEvent(nil), metrics...),
		}, true
	}
	return events.TriggerContext{}, false
}
