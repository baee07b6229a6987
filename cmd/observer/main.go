// Command observer wires the configured backend and metric source into
// an Orchestrator and runs it until an OS signal requests shutdown.
// Flag parsing and TOML configuration loading are the external CLI
// front end's job; this entry point only does construction and
// lifecycle wiring.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"observer/internal/collector"
	"observer/internal/config"
	"observer/internal/llm"
	"observer/internal/obslog"
	"observer/internal/orchestrator"
	"observer/internal/procstream"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	if err := obslog.Init(obslog.Config{Level: "info"}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		return 1
	}
	log := obslog.Component("main")

	backend, cleanup, err := buildBackend(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to construct AI backend")
		return 1
	}
	if cleanup != nil {
		defer cleanup()
	}

	orch := orchestrator.New(cfg, backend, defaultMetricCommand(), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(ctx); err != nil {
		log.Error().Err(err).Msg("orchestrator exited with error")
		return 1
	}
	return 0
}

// buildBackend constructs the LLM backend selected by cfg.AI.Backend.
// The returned cleanup func, if non-nil, releases backend resources on
// shutdown.
func buildBackend(cfg config.Config) (llm.Backend, func(), error) {
	switch cfg.AI.Backend {
	case config.AIBackendLocal:
		return llm.NewLocalHTTPBackend(cfg.AI.Endpoint, cfg.AI.Model), nil, nil
	case config.AIBackendRemote:
		backend, err := llm.NewRemoteHTTPAuthenticatedBackend(context.Background(), cfg.AI.Credential, cfg.AI.Model)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { _ = backend.Close() }, nil
	case config.AIBackendMock:
		return llm.NewMockBackend(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown AI backend %q", cfg.AI.Backend)
	}
}

// defaultMetricCommand builds the primary metrics source command. The
// binary name and arguments are placeholders for whatever external
// sampler the deployment environment provides; the Metric Collector
// falls back to gopsutil-backed sampling automatically if this probe
// fails at startup.
func defaultMetricCommand() procstream.CommandBuilder {
	return collector.DefaultPrimaryCommandBuilder("observer-metrics-sampler")
}
