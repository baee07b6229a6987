package services

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// MemResult is the fallback-mode memory sample: used and total bytes
// suffice to classify a Memory Pressure level and populate
// memory_used_mb when the primary source is unavailable.
type MemResult struct {
	UsedPercent float64
	Used        uint64
	Total       uint64
}

// MemSensor samples virtual memory usage via gopsutil.
type MemSensor struct{}

// NewMemSensor constructs a MemSensor.
func NewMemSensor() *MemSensor {
	return &MemSensor{}
}

func (s *MemSensor) Name() string { return "Memory" }

func (s *MemSensor) Connect(ctx context.Context) error { return nil }

func (s *MemSensor) Disconnect(ctx context.Context) error { return nil }

func (s *MemSensor) Collect(ctx context.Context) (any, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get virtual memory: %w", err)
	}
	return MemResult{UsedPercent: v.UsedPercent, Used: v.Used, Total: v.Total}, nil
}
