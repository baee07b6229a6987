// Package prompt renders a TriggerContext into the deterministic
// textual prompt sent to an LLM backend, and extracts the structured
// insight out of whatever text the backend sends back.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"observer/internal/events"
)

// Render projects ctx into a fixed textual layout: a preamble
// identifying the diagnostic role, a metrics summary with averaged
// and peak values, a section of timestamped recent error-class logs,
// a section of timestamped recent metric samples, and a closing
// instruction naming the expected response schema. It is a total,
// deterministic function of ctx — no wall-clock or random input.
func Render(ctx events.TriggerContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a diagnostic assistant analyzing macOS system telemetry.\n")
	fmt.Fprintf(&b, "A trigger rule %q fired at %s with expected severity %s.\n", ctx.RuleName, ctx.TriggerTime.Format(time.RFC3339), ctx.ExpectedSeverity)
	fmt.Fprintf(&b, "Reason: %s\n\n", ctx.Reason)

	b.WriteString(renderMetricsSummary(ctx.RelevantMetrics))
	b.WriteString("\n")
	b.WriteString(renderRecentLogs(ctx.RelevantLogs))
	b.WriteString("\n")
	b.WriteString(renderRecentMetrics(ctx.RelevantMetrics))
	b.WriteString("\n")

	b.WriteString("Respond with a single JSON object with exactly these fields:\n")
	b.WriteString(`  "summary": string` + "\n")
	b.WriteString(`  "root_cause": string or null` + "\n")
	b.WriteString(`  "recommendations": array of strings` + "\n")
	b.WriteString(`  "severity": one of "info", "warning", "critical"` + "\n")

	return b.String()
}

func renderMetricsSummary(metrics []events.MetricEvent) string {
	if len(metrics) == 0 {
		return "Metrics summary: no recent metric samples available.\n"
	}

	var cpuSum, cpuPeak float64
	var gpuSum, gpuPeak float64
	gpuSamples := 0

	for _, m := range metrics {
		cpuSum += m.CPUPowerMW
		if m.CPUPowerMW > cpuPeak {
			cpuPeak = m.CPUPowerMW
		}
		if m.GPUPowerMW != nil {
			gpuSum += *m.GPUPowerMW
			gpuSamples++
			if *m.GPUPowerMW > gpuPeak {
				gpuPeak = *m.GPUPowerMW
			}
		}
	}

	cpuAvg := cpuSum / float64(len(metrics))
	summary := fmt.Sprintf("Metrics summary: CPU avg %.1fmW peak %.1fmW over %d samples.\n", cpuAvg, cpuPeak, len(metrics))
	if gpuSamples > 0 {
		gpuAvg := gpuSum / float64(gpuSamples)
		summary += fmt.Sprintf("GPU avg %.1fmW peak %.1fmW over %d samples.\n", gpuAvg, gpuPeak, gpuSamples)
	}
	return summary
}

func renderRecentLogs(logs []events.LogEvent) string {
	var b strings.Builder
	b.WriteString("Recent error-class log messages:\n")
	count := 0
	for _, e := range logs {
		if !e.MessageType.IsErrorClass() {
			continue
		}
		fmt.Fprintf(&b, "  [%s] %s (%s, pid %d): %s\n", e.Timestamp.Format(time.RFC3339), e.MessageType, e.Process, e.ProcessID, e.Message)
		count++
	}
	if count == 0 {
		b.WriteString("  (none)\n")
	}
	return b.String()
}

func renderRecentMetrics(metrics []events.MetricEvent) string {
	var b strings.Builder
	b.WriteString("Recent metric samples:\n")
	if len(metrics) == 0 {
		b.WriteString("  (none)\n")
		return b.String()
	}
	for _, m := range metrics {
		gpu := "n/a"
		if m.GPUPowerMW != nil {
			gpu = fmt.Sprintf("%.1fmW", *m.GPUPowerMW)
		}
		fmt.Fprintf(&b, "  [%s] cpu=%.1fmW gpu=%s mem_pressure=%s mem_used=%.1fMB\n",
			m.Timestamp.Format(time.RFC3339), m.CPUPowerMW, gpu, m.MemoryPressure, m.MemoryUsedMB)
	}
	return b.String()
}

// rawInsight mirrors the JSON schema the prompt asks the backend to
// return.
type rawInsight struct {
	Summary         string   `json:"summary"`
	RootCause       *string  `json:"root_cause"`
	Recommendations []string `json:"recommendations"`
	Severity        string   `json:"severity"`
}

// ExtractInsight recovers an AIInsight from raw backend response text,
// trying three strategies in order: parse the whole trimmed string as
// JSON; find the first fenced code block and parse its contents;
// locate the first '{' and last '}' and parse the substring between
// them. The first strategy to produce valid JSON wins.
func ExtractInsight(responseText string, analysisTime time.Time) (events.AIInsight, error) {
	candidates := []string{
		strings.TrimSpace(responseText),
	}
	if fenced, ok := extractFencedJSON(responseText); ok {
		candidates = append(candidates, fenced)
	}
	if braced, ok := extractBracedJSON(responseText); ok {
		candidates = append(candidates, braced)
	}

	var lastErr error
	for _, candidate := range candidates {
		var raw rawInsight
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			lastErr = err
			continue
		}
		severity, _ := events.ParseSeverity(raw.Severity)
		return events.AIInsight{
			AnalysisTime:    analysisTime,
			Summary:         raw.Summary,
			RootCause:       raw.RootCause,
			Recommendations: raw.Recommendations,
			Severity:        severity,
		}, nil
	}

	return events.AIInsight{}, fmt.Errorf("extract insight: no candidate parsed as JSON: %w", lastErr)
}

// extractFencedJSON finds the first fenced code block (```json or
// plain ```) and returns its trimmed contents.
func extractFencedJSON(text string) (string, bool) {
	if start := strings.Index(text, "```json"); start >= 0 {
		rest := text[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), true
		}
	}
	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			body := strings.TrimSpace(rest[:end])
			if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
				return body, true
			}
		}
	}
	return "", false
}

// extractBracedJSON returns the substring spanning the first '{' and
// the last '}' in text, if both exist in the right order.
func extractBracedJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || start >= end {
		return "", false
	}
	return text[start : end+1], true
}
