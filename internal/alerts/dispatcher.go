// Package alerts delivers AI insights to the user as rate-limited
// notifications, deferring what it can't send immediately and
// dropping what it can't defer.
package alerts

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"observer/internal/events"
)

const (
	titleMaxLength = 256
	bodyMaxLength  = 1024
	maxRecsInBody  = 3
)

// Notifier is the external "display a notification" primitive. The
// default implementation just logs; a real desktop notifier is an
// external collaborator outside this module's scope.
type Notifier interface {
	Notify(title, body string) error
}

// LogNotifier logs notifications instead of displaying them, useful
// as the default Notifier and in tests.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier builds a Notifier that logs every delivery at info level.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(title, body string) error {
	n.log.Info().Str("title", title).Str("body", body).Msg("notification delivered")
	return nil
}

// Dispatcher delivers Critical-severity insights, deferring what the
// rate limiter refuses and dropping the oldest deferred entry on
// overflow.
type Dispatcher struct {
	limiter  *RateLimiter
	notifier Notifier
	log      zerolog.Logger

	maxQueueSize int
	deferred     []events.AIInsight
}

// NewDispatcher builds a Dispatcher allowing maxPerWindow sends per
// window, deferring up to maxQueueSize insights beyond that.
func NewDispatcher(maxPerWindow int, window time.Duration, maxQueueSize int, notifier Notifier, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		limiter:      NewRateLimiter(maxPerWindow, window),
		notifier:     notifier,
		log:          log,
		maxQueueSize: maxQueueSize,
	}
}

// SendAlert delivers insight immediately if severity is Critical and
// the rate limiter allows it, defers it if rate-limited, or is a
// silent no-op for anything below Critical.
func (d *Dispatcher) SendAlert(insight events.AIInsight) error {
	if insight.Severity < events.SeverityCritical {
		d.log.Info().Str("severity", insight.Severity.String()).Str("summary", insight.Summary).
			Msg("skipping non-critical notification")
		return nil
	}

	d.drainDeferred()

	if d.limiter.CanSend() {
		return d.sendNow(insight)
	}

	d.enqueueDeferred(insight)
	d.log.Info().Str("summary", insight.Summary).Msg("queued notification due to rate limit")
	return nil
}

// Tick drains as much of the deferred queue as the rate limiter
// currently allows and reports how many insights it delivered.
func (d *Dispatcher) Tick() int {
	return d.drainDeferred()
}

// DeferredLen reports how many insights are currently waiting for
// rate-limit capacity.
func (d *Dispatcher) DeferredLen() int {
	return len(d.deferred)
}

func (d *Dispatcher) drainDeferred() int {
	delivered := 0
	for len(d.deferred) > 0 && d.limiter.CanSend() {
		insight := d.deferred[0]
		d.deferred = d.deferred[1:]
		if insight.Severity != events.SeverityCritical {
			continue
		}
		if err := d.sendNow(insight); err != nil {
			d.log.Error().Err(err).Msg("failed to deliver deferred notification")
			continue
		}
		delivered++
	}
	return delivered
}

func (d *Dispatcher) enqueueDeferred(insight events.AIInsight) {
	if len(d.deferred) >= d.maxQueueSize {
		dropped := d.deferred[0]
		d.deferred = d.deferred[1:]
		d.log.Warn().Str("summary", dropped.Summary).Msg("deferred alert queue full, dropping oldest")
	}
	d.deferred = append(d.deferred, insight)
}

func (d *Dispatcher) sendNow(insight events.AIInsight) error {
	title := truncateText(fmt.Sprintf("System Alert: %s", insight.Summary), titleMaxLength)
	body := truncateText(formatNotificationBody(insight), bodyMaxLength)

	if err := d.notifier.Notify(title, body); err != nil {
		d.log.Error().Err(err).Msg("failed to send notification")
		return err
	}
	d.limiter.RecordNotification()
	d.log.Info().Str("summary", insight.Summary).Msg("sent notification")
	return nil
}

// formatNotificationBody renders root cause and up to 3 numbered
// recommendations, noting how many more exist beyond that.
func formatNotificationBody(insight events.AIInsight) string {
	var b strings.Builder

	if insight.RootCause != nil {
		fmt.Fprintf(&b, "Cause: %s\n\n", *insight.RootCause)
	}

	if len(insight.Recommendations) > 0 {
		b.WriteString("Recommendations:\n")
		shown := insight.Recommendations
		if len(shown) > maxRecsInBody {
			shown = shown[:maxRecsInBody]
		}
		for i, rec := range shown {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
		if extra := len(insight.Recommendations) - maxRecsInBody; extra > 0 {
			fmt.Fprintf(&b, "... and %d more recommendations", extra)
		}
	}

	return strings.TrimSpace(b.String())
}

// truncateText truncates text to at most max bytes, walking backward
// from the cut point to the nearest valid UTF-8 rune boundary so a
// multi-byte character is never split, then appends "...".
func truncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}

	cut := max - 3
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !isRuneBoundary(text, cut) {
		cut--
	}
	return text[:cut] + "..."
}

func isRuneBoundary(s string, i int) bool {
	if i == 0 || i == len(s) {
		return true
	}
	return utf8.RuneStart(s[i])
}
