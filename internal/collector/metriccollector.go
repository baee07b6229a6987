package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"observer/internal/collector/services"
	"observer/internal/events"
	"observer/internal/procstream"
)

// rawPrimaryMetric is the structured payload emitted by the primary
// metrics source: at minimum a timestamp, CPU power, and memory
// pressure, with everything else optional.
type rawPrimaryMetric struct {
	Timestamp       string   `json:"timestamp"`
	CPUPowerMW      float64  `json:"cpu_power_mw"`
	CPUUsagePercent *float64 `json:"cpu_usage_percent"`
	GPUPowerMW      *float64 `json:"gpu_power_mw"`
	GPUUsagePercent *float64 `json:"gpu_usage_percent"`
	MemoryPressure  string   `json:"memory_pressure"`
	MemoryUsedMB    *float64 `json:"memory_used_mb"`
	EnergyImpact    *float64 `json:"energy_impact"`
}

// MetricCollector reads the primary metrics source through a
// Supervisor, taking records at whatever cadence that command emits
// them. If the primary source's capability probe fails at startup, it
// falls back to a gopsutil-backed sampler ticking at interval that
// yields only CPU usage, memory pressure and memory used; power and
// GPU fields stay empty in that mode.
type MetricCollector struct {
	sup      *procstream.Supervisor
	interval time.Duration
	log      zerolog.Logger
	Events   chan events.MetricEvent
	runCtx   context.Context

	fallback     bool
	fallbackStop chan struct{}
	fallbackDone chan struct{}

	cpuSensor *services.CPUSensor
	memSensor *services.MemSensor
}

// NewMetricCollector builds a MetricCollector reading build's command,
// buffering up to bufferSize unread events. interval sets only the
// fallback sampler's tick; it is not passed to build's command.
func NewMetricCollector(build procstream.CommandBuilder, interval time.Duration, bufferSize int, log zerolog.Logger) *MetricCollector {
	c := &MetricCollector{
		interval:  interval,
		log:       log,
		Events:    make(chan events.MetricEvent, bufferSize),
		runCtx:    context.Background(),
		cpuSensor: services.NewCPUSensor(),
		memSensor: services.NewMemSensor(),
	}
	c.sup = procstream.New("metric-collector", build, c.handleLine, log)
	return c
}

// Start probes the primary source. If the probe succeeds, metrics
// stream from the supervised subprocess. If it fails, Start switches
// to the gopsutil-backed fallback sampler instead of returning an
// error — the collector degrades gracefully rather than going silent.
func (c *MetricCollector) Start(ctx context.Context) error {
	c.runCtx = ctx
	if err := c.sup.Start(ctx); err != nil {
		c.log.Warn().Err(err).Msg("primary metrics source unavailable, falling back to coarse sampling")
		c.startFallback(ctx)
		return nil
	}
	return nil
}

// Stop terminates whichever source is currently active.
func (c *MetricCollector) Stop() {
	if c.fallback {
		close(c.fallbackStop)
		<-c.fallbackDone
		return
	}
	c.sup.Stop()
}

// IsFallback reports whether the collector is running in degraded,
// gopsutil-backed mode rather than against the primary source.
func (c *MetricCollector) IsFallback() bool {
	return c.fallback
}

// handleLine is called on the supervisor's own goroutine; the send to
// Events is guarded by runCtx so a shutdown mid-handoff is treated the
// same as a dropped receiver instead of blocking forever.
func (c *MetricCollector) handleLine(line string) {
	event, ok := parsePrimaryMetricRecord(line)
	if !ok {
		c.log.Debug().Str("line", line).Msg("skipping malformed metric record")
		return
	}
	select {
	case c.Events <- event:
	case <-c.runCtx.Done():
	}
}

func (c *MetricCollector) startFallback(ctx context.Context) {
	c.fallback = true
	c.fallbackStop = make(chan struct{})
	c.fallbackDone = make(chan struct{})

	go func() {
		defer close(c.fallbackDone)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.fallbackStop:
				return
			case <-ticker.C:
				event, err := c.sampleFallbackMetric(ctx)
				if err != nil {
					c.log.Debug().Err(err).Msg("fallback metric sample failed")
					continue
				}
				select {
				case c.Events <- event:
				case <-ctx.Done():
					return
				case <-c.fallbackStop:
					return
				}
			}
		}
	}()
}

// sampleFallbackMetric reads CPU usage and memory through the
// gopsutil-backed sensors. It reports CPU usage percent, memory
// pressure and memory used; power, energy and GPU fields are left at
// their zero/absent values.
func (c *MetricCollector) sampleFallbackMetric(ctx context.Context) (events.MetricEvent, error) {
	cpuResult, err := c.cpuSensor.Collect(ctx)
	if err != nil {
		return events.MetricEvent{}, err
	}
	cpuStats, ok := cpuResult.(services.CPUResult)
	if !ok {
		return events.MetricEvent{}, fmt.Errorf("unexpected CPU sensor result type %T", cpuResult)
	}

	memResult, err := c.memSensor.Collect(ctx)
	if err != nil {
		return events.MetricEvent{}, err
	}
	memStats, ok := memResult.(services.MemResult)
	if !ok {
		return events.MetricEvent{}, fmt.Errorf("unexpected memory sensor result type %T", memResult)
	}

	return events.MetricEvent{
		Timestamp:       time.Now().UTC(),
		CPUUsagePercent: cpuStats.TotalUsage,
		MemoryPressure:  memoryPressureFromUsedPercent(memStats.UsedPercent),
		MemoryUsedMB:    float64(memStats.Used) / (1024 * 1024),
	}, nil
}

// memoryPressureFromUsedPercent approximates the three-level pressure
// enum from a used-memory percentage, the same coarse thresholds the
// fallback vm_stat script classifies free-page counts against.
func memoryPressureFromUsedPercent(usedPercent float64) events.MemoryPressure {
	switch {
	case usedPercent >= 90:
		return events.MemoryPressureCritical
	case usedPercent >= 75:
		return events.MemoryPressureWarning
	default:
		return events.MemoryPressureNormal
	}
}

// parsePrimaryMetricRecord parses one primary-source JSON record.
// Malformed JSON, an unparsable timestamp, or an unrecognized
// memory_pressure value cause ok=false; the caller skips the frame.
func parsePrimaryMetricRecord(line string) (events.MetricEvent, bool) {
	var raw rawPrimaryMetric
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return events.MetricEvent{}, false
	}

	ts, ok := parseLogTimestamp(raw.Timestamp)
	if !ok {
		return events.MetricEvent{}, false
	}

	pressure, ok := events.ParseMemoryPressure(raw.MemoryPressure)
	if !ok {
		return events.MetricEvent{}, false
	}

	event := events.MetricEvent{
		Timestamp:       ts,
		CPUPowerMW:      raw.CPUPowerMW,
		GPUPowerMW:      raw.GPUPowerMW,
		GPUUsagePercent: raw.GPUUsagePercent,
		MemoryPressure:  pressure,
	}
	if raw.CPUUsagePercent != nil {
		event.CPUUsagePercent = *raw.CPUUsagePercent
	}
	if raw.MemoryUsedMB != nil {
		event.MemoryUsedMB = *raw.MemoryUsedMB
	}
	if raw.EnergyImpact != nil {
		event.EnergyImpact = *raw.EnergyImpact
	}
	return event, true
}

// DefaultPrimaryCommandBuilder builds the primary metrics source
// command: an external sampler emitting one JSON record per line,
// addressed as an opaque argv the way the supervisor treats every
// collector's subprocess. No sampling interval is passed to it; the
// command's own output cadence decides how often records arrive.
func DefaultPrimaryCommandBuilder(binary string, args ...string) procstream.CommandBuilder {
	return func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, binary, args...)
	}
}
