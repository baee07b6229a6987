// Package analyzer drives the pluggable LLM backend on behalf of
// fired trigger rules and owns the retry queue for failed attempts.
package analyzer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"observer/internal/events"
	"observer/internal/llm"
)

// Analyzer attempts backend analysis inline and, on failure, enqueues
// a RetryEntry for later draining by ProcessRetryQueue. Successful
// insights — whether produced inline or on retry — are forwarded to
// Insights, the analyzer's owned channel to the alert dispatcher.
type Analyzer struct {
	backend      llm.Backend
	baseDelay    time.Duration
	maxAttempts  int
	maxQueueSize int
	log          zerolog.Logger

	Insights chan events.AIInsight

	queue []events.RetryEntry
}

// New constructs an Analyzer. baseDelay, maxAttempts, and
// maxQueueSize mirror the retry.* configuration table.
func New(backend llm.Backend, baseDelay time.Duration, maxAttempts, maxQueueSize int, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		backend:      backend,
		baseDelay:    baseDelay,
		maxAttempts:  maxAttempts,
		maxQueueSize: maxQueueSize,
		log:          log,
		Insights:     make(chan events.AIInsight, maxQueueSize),
	}
}

// Analyze attempts the backend once for trigger. On success the
// insight is forwarded to Insights and nil is returned. On failure a
// RetryEntry is enqueued at attempt 1 and the error is returned to the
// caller for logging.
func (a *Analyzer) Analyze(ctx context.Context, trigger events.TriggerContext) error {
	insight, err := a.backend.Analyze(ctx, trigger)
	if err == nil {
		a.forward(ctx, insight)
		return nil
	}

	a.enqueue(events.RetryEntry{
		ID:            uuid.NewString(),
		Context:       trigger,
		AttemptCount:  1,
		NextRetryTime: time.Now().Add(a.delayForAttempt(1)),
	})
	a.log.Warn().Err(err).Str("rule", trigger.RuleName).Msg("analysis failed, entry queued for retry")
	return err
}

// ProcessRetryQueue walks entries whose NextRetryTime has arrived,
// retries each, and either forwards the resulting insight, re-enqueues
// with an incremented attempt count and doubled delay, or discards the
// entry once max attempts is exceeded.
func (a *Analyzer) ProcessRetryQueue(ctx context.Context) {
	ready, pending := a.splitReady(time.Now())
	a.queue = pending

	for _, entry := range ready {
		insight, err := a.backend.Analyze(ctx, entry.Context)
		if err == nil {
			a.forward(ctx, insight)
			continue
		}

		if entry.AttemptCount+1 >= a.maxAttempts {
			a.log.Warn().Err(err).Str("rule", entry.Context.RuleName).Int("attempts", entry.AttemptCount).
				Msg("retry entry discarded after exceeding max attempts")
			continue
		}

		entry.AttemptCount++
		entry.NextRetryTime = time.Now().Add(a.delayForAttempt(entry.AttemptCount))
		a.enqueue(entry)
	}
}

// QueueLen reports the number of entries currently awaiting retry.
func (a *Analyzer) QueueLen() int {
	return len(a.queue)
}

// delayForAttempt computes base_delay * 2^(attempt-1): the first
// enqueue (attempt 1) waits exactly base_delay, doubling thereafter.
func (a *Analyzer) delayForAttempt(attempt int) time.Duration {
	delay := a.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// splitReady partitions the queue into entries due at or before now
// and the rest, preserving relative order within each partition.
func (a *Analyzer) splitReady(now time.Time) (ready, pending []events.RetryEntry) {
	for _, e := range a.queue {
		if !e.NextRetryTime.After(now) {
			ready = append(ready, e)
		} else {
			pending = append(pending, e)
		}
	}
	return ready, pending
}

// enqueue appends entry, dropping the oldest entry first if the queue
// is already at capacity.
func (a *Analyzer) enqueue(entry events.RetryEntry) {
	if len(a.queue) >= a.maxQueueSize {
		a.log.Warn().Str("dropped_id", a.queue[0].ID).Msg("retry queue at capacity, dropping oldest entry")
		a.queue = a.queue[1:]
	}
	a.queue = append(a.queue, entry)
}

// forward hands insight to Insights, guarded by ctx so a shutdown
// mid-handoff is treated as a dropped receiver instead of blocking
// forever when the insight forwarder has already stopped draining.
func (a *Analyzer) forward(ctx context.Context, insight events.AIInsight) {
	select {
	case a.Insights <- insight:
	case <-ctx.Done():
	}
}
