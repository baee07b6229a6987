package services

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
)

// CPUResult is the fallback-mode CPU sample: just enough to populate
// a Metric Event's cpu_usage_percent when the primary power-sampling
// source is unavailable.
type CPUResult struct {
	TotalUsage float64
}

// CPUSensor samples overall CPU utilization via gopsutil.
type CPUSensor struct{}

// NewCPUSensor constructs a CPUSensor.
func NewCPUSensor() *CPUSensor {
	return &CPUSensor{}
}

func (s *CPUSensor) Name() string { return "CPU" }

func (s *CPUSensor) Connect(ctx context.Context) error { return nil }

func (s *CPUSensor) Disconnect(ctx context.Context) error { return nil }

func (s *CPUSensor) Collect(ctx context.Context) (any, error) {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(total) == 0 {
		return nil, fmt.Errorf("failed to get total cpu percent: %w", err)
	}
	return CPUResult{TotalUsage: total[0]}, nil
}
