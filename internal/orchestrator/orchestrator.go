// Package orchestrator wires the collectors, aggregator, trigger
// engine, analyzer, and alert dispatcher into one running pipeline and
// owns their shared lifetime.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"observer/internal/aggregator"
	"observer/internal/alerts"
	"observer/internal/analyzer"
	"observer/internal/collector"
	"observer/internal/config"
	"observer/internal/events"
	"observer/internal/llm"
	"observer/internal/procstream"
	"observer/internal/triggers"
)

// Orchestrator owns every component's lifetime and the channels
// connecting them: log/metric collectors feed the Evaluator, which
// owns the Aggregator and Trigger Engine exclusively and hands fired
// triggers to the Analyzer; the Analyzer's insights flow to the Alert
// Dispatcher; a Notification Ticker periodically drains the
// dispatcher's deferred queue and the analyzer's retry queue.
type Orchestrator struct {
	cfg config.Config
	log zerolog.Logger

	logCollector    *collector.LogCollector
	metricCollector *collector.MetricCollector
	aggregatorState *aggregator.Aggregator
	engine          *triggers.Engine
	an              *analyzer.Analyzer
	dispatcher      *alerts.Dispatcher

	stopped atomic.Bool
	wg      sync.WaitGroup
}

// New constructs an Orchestrator from cfg. backend is the already-
// constructed LLM backend (Local, Remote, or Mock) selected by the
// caller per cfg.AI.Backend.
func New(cfg config.Config, backend llm.Backend, metricCommand procstream.CommandBuilder, log zerolog.Logger) *Orchestrator {
	aggState := aggregator.New(cfg.Buffer.MaxAge, cfg.Buffer.MaxSize)

	engine := triggers.NewEngine(
		triggers.ErrorFrequencyRule{Threshold: cfg.Triggers.ErrorThreshold, Window: cfg.Triggers.ErrorWindow, Sev: events.SeverityWarning},
		triggers.MemoryPressureRule{Threshold: cfg.Triggers.MemoryThreshold, Sev: events.SeverityWarning},
		triggers.DefaultCrashDetectionRule(),
		triggers.ResourceSpikeRule{
			CPUThresholdMW:   cfg.Triggers.CPUSpikeThresholdMW,
			GPUThresholdMW:   cfg.Triggers.GPUSpikeThresholdMW,
			ComparisonWindow: cfg.Triggers.SpikeComparisonWindow,
			Sev:              events.SeverityWarning,
		},
	)

	an := analyzer.New(backend, cfg.Retry.BaseDelay, cfg.Retry.MaxAttempts, cfg.Retry.MaxQueue, log.With().Str("component", "analyzer").Logger())

	notifier := alerts.NewLogNotifier(log.With().Str("component", "notifier").Logger())
	dispatcher := alerts.NewDispatcher(cfg.Alerts.RateLimitPerWindow, time.Minute, cfg.Alerts.MaxDeferred, notifier, log.With().Str("component", "dispatcher").Logger())

	return &Orchestrator{
		cfg:             cfg,
		log:             log,
		logCollector:    collector.NewLogCollector(cfg.Logging.Filter, 256, log.With().Str("component", "log-collector").Logger()),
		metricCollector: collector.NewMetricCollector(metricCommand, cfg.Metrics.Interval, 256, log.With().Str("component", "metric-collector").Logger()),
		aggregatorState: aggState,
		engine:          engine,
		an:              an,
		dispatcher:      dispatcher,
	}
}

// Run starts every worker and blocks until ctx is cancelled, at which
// point it stops the collectors, drains the evaluator and ticker, and
// returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.logCollector.Start(ctx); err != nil {
		return err
	}
	if err := o.metricCollector.Start(ctx); err != nil {
		o.logCollector.Stop()
		return err
	}

	o.wg.Add(3)
	go o.runEvaluator(ctx)
	go o.runInsightForwarder(ctx)
	go o.runNotificationTicker(ctx)

	<-ctx.Done()
	o.stopped.Store(true)

	o.logCollector.Stop()
	o.metricCollector.Stop()
	o.wg.Wait()

	o.log.Info().Msg("orchestrator shut down cleanly")
	return nil
}

// runEvaluator is the single owner of the Aggregator: it multiplexes
// both collector channels, applies each event, and runs the Trigger
// Engine after every mutation. A fired trigger is handed to the
// Analyzer inline — the evaluator suspends on that backend call and
// does not admit new events until it returns, matching the
// cooperative single-executor suspension model.
func (o *Orchestrator) runEvaluator(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case logEvent, ok := <-o.logCollector.Events:
			if !ok {
				return
			}
			o.aggregatorState.AddLog(logEvent)
			o.evaluateAndAnalyze(ctx)
		case metricEvent, ok := <-o.metricCollector.Events:
			if !ok {
				return
			}
			o.aggregatorState.AddMetric(metricEvent)
			o.evaluateAndAnalyze(ctx)
		}
	}
}

func (o *Orchestrator) evaluateAndAnalyze(ctx context.Context) {
	logs := o.aggregatorState.GetRecentLogs(o.cfg.Buffer.MaxAge)
	metrics := o.aggregatorState.GetRecentMetrics(o.cfg.Buffer.MaxAge)

	triggerCtx, fired := o.engine.Evaluate(logs, metrics)
	if !fired {
		return
	}

	if err := o.an.Analyze(ctx, triggerCtx); err != nil {
		o.log.Warn().Err(err).Str("rule", triggerCtx.RuleName).Msg("inline analysis failed, queued for retry")
	}
}

// runInsightForwarder drains the analyzer's Insights channel and
// hands each resulting AI Insight to the dispatcher.
func (o *Orchestrator) runInsightForwarder(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case insight, ok := <-o.an.Insights:
			if !ok {
				return
			}
			if err := o.dispatcher.SendAlert(insight); err != nil {
				o.log.Error().Err(err).Msg("failed to dispatch alert")
			}
		}
	}
}

// runNotificationTicker periodically drains the dispatcher's deferred
// queue and drives the analyzer's retry queue, the two suspension
// points outside the evaluator's critical path.
func (o *Orchestrator) runNotificationTicker(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.dispatcher.Tick()
			o.an.ProcessRetryQueue(ctx)
		}
	}
}

// IsStopped reports whether shutdown has been initiated.
func (o *Orchestrator) IsStopped() bool {
	return o.stopped.Load()
}
