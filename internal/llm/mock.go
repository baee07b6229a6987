package llm

import (
	"context"
	"sync"

	"observer/internal/events"
)

// mockResult pairs a canned response with the error it should
// produce, so MockBackend can simulate both successful analyses and
// classified failures.
type mockResult struct {
	insight events.AIInsight
	err     error
}

// MockBackend returns a caller-supplied sequence of results
// round-robin, recording every context it was asked to analyze. It
// exists purely for analyzer and orchestrator tests — never call
// specific providers directly from those tests, inject this instead.
type MockBackend struct {
	mu          sync.Mutex
	results     []mockResult
	nextIndex   int
	calls       int
	lastContext events.TriggerContext
}

// NewMockBackend builds a MockBackend with no canned results; Analyze
// will error until AddResult is called.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// AddResult appends one (insight, nil) response to the round-robin
// sequence.
func (m *MockBackend) AddResult(insight events.AIInsight) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, mockResult{insight: insight})
}

// AddError appends one (zero-value, err) response to the sequence.
func (m *MockBackend) AddError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, mockResult{err: err})
}

func (m *MockBackend) Analyze(_ context.Context, trigger events.TriggerContext) (events.AIInsight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.lastContext = trigger

	if len(m.results) == 0 {
		return events.AIInsight{}, &BackendError{Kind: ErrorKindBackendRefusal, Err: errNoCannedResults}
	}

	result := m.results[m.nextIndex]
	m.nextIndex = (m.nextIndex + 1) % len(m.results)
	return result.insight, result.err
}

// CallCount reports how many times Analyze has been invoked.
func (m *MockBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastContext returns the most recent TriggerContext passed to Analyze.
func (m *MockBackend) LastContext() events.TriggerContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastContext
}

var errNoCannedResults = mockBackendError("mock backend has no canned results configured")

type mockBackendError string

func (e mockBackendError) Error() string { return string(e) }
