// Package triggers holds the pure rules that decide when a burst of
// log and metric activity deserves AI analysis. Each rule inspects an
// in-memory snapshot of recent events; none of them have side effects
// or retain state between calls except where noted.
package triggers

import (
	"fmt"
	"strings"
	"time"

	"observer/internal/events"
)

// Rule evaluates a snapshot of recent log and metric events and
// reports whether it fires, along with a human-readable reason.
type Rule interface {
	Evaluate(logs []events.LogEvent, metrics []events.MetricEvent) (fired bool, reason string)
	Name() string
	Severity() events.Severity
}

// ErrorFrequencyRule fires when more than threshold error/fault
// messages occurred within the trailing window.
type ErrorFrequencyRule struct {
	Threshold int
	Window    time.Duration
	Sev       events.Severity
}

// DefaultErrorFrequencyRule matches the documented default: more than
// 5 errors within 60 seconds, at Warning severity.
func DefaultErrorFrequencyRule() ErrorFrequencyRule {
	return ErrorFrequencyRule{Threshold: 5, Window: 60 * time.Second, Sev: events.SeverityWarning}
}

func (r ErrorFrequencyRule) Evaluate(logs []events.LogEvent, _ []events.MetricEvent) (bool, string) {
	cutoff := time.Now().Add(-r.Window)
	count := 0
	for _, e := range logs {
		if !e.Timestamp.Before(cutoff) && e.MessageType.IsErrorClass() {
			count++
		}
	}
	if count > r.Threshold {
		return true, fmt.Sprintf("%d error/fault messages in the last %s, exceeding threshold %d", count, r.Window, r.Threshold)
	}
	return false, ""
}

func (r ErrorFrequencyRule) Name() string             { return "ErrorFrequencyRule" }
func (r ErrorFrequencyRule) Severity() events.Severity { return r.Sev }

// MemoryPressureRule fires when any recent metric sample reports
// memory pressure at or above threshold.
type MemoryPressureRule struct {
	Threshold events.MemoryPressure
	Sev       events.Severity
}

// DefaultMemoryPressureRule matches Warning pressure -> Warning severity.
func DefaultMemoryPressureRule() MemoryPressureRule {
	return MemoryPressureRule{Threshold: events.MemoryPressureWarning, Sev: events.SeverityWarning}
}

// CriticalMemoryPressureRule matches Critical pressure -> Critical severity.
func CriticalMemoryPressureRule() MemoryPressureRule {
	return MemoryPressureRule{Threshold: events.MemoryPressureCritical, Sev: events.SeverityCritical}
}

func (r MemoryPressureRule) Evaluate(_ []events.LogEvent, metrics []events.MetricEvent) (bool, string) {
	for _, m := range metrics {
		if m.MemoryPressure >= r.Threshold {
			return true, fmt.Sprintf("memory pressure %s reached threshold %s", m.MemoryPressure, r.Threshold)
		}
	}
	return false, ""
}

func (r MemoryPressureRule) Name() string             { return "MemoryPressureRule" }
func (r MemoryPressureRule) Severity() events.Severity { return r.Sev }

// CrashDetectionRule fires when an error/fault log message contains
// one of a fixed set of crash-indicating keywords.
type CrashDetectionRule struct {
	Keywords []string
	Sev      events.Severity
}

// DefaultCrashDetectionRule matches the documented common crash
// indicators at Critical severity.
func DefaultCrashDetectionRule() CrashDetectionRule {
	return CrashDetectionRule{
		Keywords: []string{
			"crash", "crashed", "segmentation fault", "segfault",
			"kernel panic", "panic", "abort", "terminated unexpectedly",
			"sigkill", "sigsegv", "sigabrt", "exception", "fatal error",
		},
		Sev: events.SeverityCritical,
	}
}

func (r CrashDetectionRule) Evaluate(logs []events.LogEvent, _ []events.MetricEvent) (bool, string) {
	for _, e := range logs {
		if !e.MessageType.IsErrorClass() {
			continue
		}
		lower := strings.ToLower(e.Message)
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return true, fmt.Sprintf("crash keyword %q found in message from %s", kw, e.Process)
			}
		}
	}
	return false, ""
}

func (r CrashDetectionRule) Name() string             { return "CrashDetectionRule" }
func (r CrashDetectionRule) Severity() events.Severity { return r.Sev }

// ResourceSpikeRule fires when CPU or GPU power draw jumps by at
// least its threshold within the comparison window. It tracks a
// running minimum over the chronologically sorted window and records
// the largest positive delta from that minimum seen so far — upward
// excursions only, decreases never count.
type ResourceSpikeRule struct {
	CPUThresholdMW   float64
	GPUThresholdMW   float64
	ComparisonWindow time.Duration
	Sev              events.Severity
}

// DefaultResourceSpikeRule matches the documented defaults: 1000mW
// CPU / 2000mW GPU spike within a 30 second window, at Warning severity.
func DefaultResourceSpikeRule() ResourceSpikeRule {
	return ResourceSpikeRule{
		CPUThresholdMW:   1000,
		GPUThresholdMW:   2000,
		ComparisonWindow: 30 * time.Second,
		Sev:              events.SeverityWarning,
	}
}

func (r ResourceSpikeRule) Evaluate(_ []events.LogEvent, metrics []events.MetricEvent) (bool, string) {
	if len(metrics) < 2 {
		return false, ""
	}

	cutoff := time.Now().Add(-r.ComparisonWindow)
	recent := make([]events.MetricEvent, 0, len(metrics))
	for _, m := range metrics {
		if !m.Timestamp.Before(cutoff) {
			recent = append(recent, m)
		}
	}
	if len(recent) < 2 {
		return false, ""
	}

	sortMetricsByTime(recent)

	maxCPUSpike := 0.0
	maxGPUSpike := 0.0

	cpuRunningMin := recent[0].CPUPowerMW
	var gpuRunningMin *float64
	if recent[0].GPUPowerMW != nil {
		v := *recent[0].GPUPowerMW
		gpuRunningMin = &v
	}

	for _, m := range recent[1:] {
		if spike := m.CPUPowerMW - cpuRunningMin; spike > 0 {
			maxCPUSpike = max(maxCPUSpike, spike)
		}
		cpuRunningMin = min(cpuRunningMin, m.CPUPowerMW)

		switch {
		case m.GPUPowerMW != nil && gpuRunningMin != nil:
			if spike := *m.GPUPowerMW - *gpuRunningMin; spike > 0 {
				maxGPUSpike = max(maxGPUSpike, spike)
			}
			v := min(*gpuRunningMin, *m.GPUPowerMW)
			gpuRunningMin = &v
		case m.GPUPowerMW != nil:
			v := *m.GPUPowerMW
			gpuRunningMin = &v
		}
	}

	switch {
	case maxCPUSpike >= r.CPUThresholdMW:
		return true, fmt.Sprintf("CPU power spiked %.1fmW within %s", maxCPUSpike, r.ComparisonWindow)
	case maxGPUSpike >= r.GPUThresholdMW:
		return true, fmt.Sprintf("GPU power spiked %.1fmW within %s", maxGPUSpike, r.ComparisonWindow)
	default:
		return false, ""
	}
}

func (r ResourceSpikeRule) Name() string             { return "ResourceSpikeRule" }
func (r ResourceSpikeRule) Severity() events.Severity { return r.Sev }

// sortMetricsByTime sorts in place by ascending timestamp. len(m) is
// always small (bounded by the aggregator's comparison window), so a
// simple insertion sort avoids pulling in sort for a handful of items.
func sortMetricsByTime(m []events.MetricEvent) {
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && m[j].Timestamp.Before(m[j-1].Timestamp); j-- {
			m[j], m[j-1] = m[j-1], m[j]
		}
	}
}
