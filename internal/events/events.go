// Package events defines the value types that flow through the observer:
// log and metric events as parsed off the wire, and the derived records
// (trigger contexts, AI insights, retry entries) produced downstream.
package events

import "time"

// MessageType enumerates the log-record classes the log source can emit.
type MessageType int

const (
	MessageTypeInfo MessageType = iota
	MessageTypeDebug
	MessageTypeError
	MessageTypeFault
)

func (m MessageType) String() string {
	switch m {
	case MessageTypeError:
		return "Error"
	case MessageTypeFault:
		return "Fault"
	case MessageTypeInfo:
		return "Info"
	case MessageTypeDebug:
		return "Debug"
	default:
		return "Unknown"
	}
}

// IsErrorClass reports whether m counts toward error-frequency and
// crash-detection rules.
func (m MessageType) IsErrorClass() bool {
	return m == MessageTypeError || m == MessageTypeFault
}

// ParseMessageType matches s case-insensitively against the known
// message types. The second return value is false for anything else.
func ParseMessageType(s string) (MessageType, bool) {
	switch lowerASCII(s) {
	case "error":
		return MessageTypeError, true
	case "fault":
		return MessageTypeFault, true
	case "info":
		return MessageTypeInfo, true
	case "debug":
		return MessageTypeDebug, true
	default:
		return MessageTypeInfo, false
	}
}

// Severity is a total order: Info < Warning < Critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// ParseSeverity matches s case-insensitively. Unknown values coerce to
// Info, with ok=false so the caller can emit a diagnostic.
func ParseSeverity(s string) (Severity, bool) {
	switch lowerASCII(s) {
	case "critical":
		return SeverityCritical, true
	case "warning":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return SeverityInfo, false
	}
}

// MemoryPressure is a total order: Normal < Warning < Critical.
type MemoryPressure int

const (
	MemoryPressureNormal MemoryPressure = iota
	MemoryPressureWarning
	MemoryPressureCritical
)

func (p MemoryPressure) String() string {
	switch p {
	case MemoryPressureCritical:
		return "Critical"
	case MemoryPressureWarning:
		return "Warning"
	default:
		return "Normal"
	}
}

// ParseMemoryPressure matches s case-insensitively against the known
// pressure labels.
func ParseMemoryPressure(s string) (MemoryPressure, bool) {
	switch lowerASCII(s) {
	case "critical":
		return MemoryPressureCritical, true
	case "warning":
		return MemoryPressureWarning, true
	case "normal":
		return MemoryPressureNormal, true
	default:
		return MemoryPressureNormal, false
	}
}

// LogEvent is an immutable, normalized record derived from one line of
// the log source. Every field is present post-parse.
type LogEvent struct {
	Timestamp   time.Time
	MessageType MessageType
	Subsystem   string
	Category    string
	Process     string
	ProcessID   uint32
	Message     string
}

// MetricEvent is an immutable snapshot of resource measurements. GPU
// fields are nil when the hardware or the active source doesn't supply
// them (fallback mode), not on parse error.
type MetricEvent struct {
	Timestamp       time.Time
	CPUPowerMW      float64
	CPUUsagePercent float64
	GPUPowerMW      *float64
	GPUUsagePercent *float64
	MemoryPressure  MemoryPressure
	MemoryUsedMB    float64
	EnergyImpact    float64
}

// lowerASCII is a tiny ASCII lowercaser, sufficient for the fixed
// vocabularies above; it returns s unchanged without allocating when s
// has no uppercase ASCII letter, and copies it only when folding is
// needed.
func lowerASCII(s string) string {
	needsFold := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			needsFold = true
			break
		}
	}
	if !needsFold {
		return s
	}
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
