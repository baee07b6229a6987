// Package services provides the gopsutil-backed sensors the Metric
// Collector falls back to when the primary metrics source is
// unavailable.
package services

import "context"

// Sensor is a capability probe plus a single sample. The Metric
// Collector's fallback path drives one Sensor per resource; Connect
// and Disconnect exist for sensors that hold onto a handle, though the
// gopsutil-backed sensors below are stateless.
type Sensor interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Collect(ctx context.Context) (any, error)
}
