package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/rpc-harness/exitcodes"
	"github.com/ethereum-optimism/infra/rpc-harness/registry"
	"github.com/ethereum-optimism/infra/rpc-harness/retention"
	"github.com/ethereum-optimism/infra/rpc-harness/runner"
	"github.com/ethereum-optimism/infra/rpc-harness/service"
	"github.com/ethereum-optimism/infra/rpc-harness/store"
	"github.com/ethereum-optimism/infra/rpc-harness/types"
)

// Harness implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &Harness{}

// TestRunner runs one planned test end to end.
type TestRunner interface {
	Run(ctx context.Context, test types.TestConfig) (*runner.Result, error)
}

// Harness sweeps old reports and runs every planned test, once or on an interval.
type Harness struct {
	ctx     context.Context
	config  *Config
	version string
	tests   []types.TestConfig
	runner  TestRunner
	sweeper *retention.Sweeper
	service *service.Service
	out     io.Writer

	mu      sync.Mutex
	results []*runner.Result

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

// Option customizes a Harness.
type Option func(*Harness)

// WithLevelController exposes runtime log level changes on the healthz server.
func WithLevelController(levels service.LevelController) Option {
	return func(h *Harness) {
		h.service = service.New(serviceConfig(h.config, levels))
	}
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error), opts ...Option) (*Harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating harness with config",
		"collection", config.Collection,
		"envDir", config.EnvDir,
		"reportsDir", config.ReportsDir,
		"plan", config.PlanFile,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	reg, err := registry.NewRegistry(registry.Config{
		Log:      config.Log,
		PlanFile: config.PlanFile,
		Tests:    config.Tests,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	executor, err := runner.NewNewmanExecutor(runner.ExecutorConfig{
		Log:          config.Log,
		Binary:       config.NewmanBinary,
		HTMLReporter: config.HTMLReporter,
		Timeout:      config.RunTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	fileStore := store.New()
	pipeline, err := runner.NewPipeline(runner.Config{
		Executor:          executor,
		Store:             fileStore,
		Log:               config.Log,
		Collection:        config.Collection,
		EnvDir:            config.EnvDir,
		ReportsDir:        config.ReportsDir,
		Results:           config.Results,
		Formats:           config.Formats,
		MaxLength:         config.MaxJSONLength,
		DisableHTMLReport: config.HTMLReporter == "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	config.Log.Info("harness.New: created registry and pipeline", "tests", len(reg.Tests()))

	h := &Harness{
		ctx:              ctx,
		config:           config,
		version:          version,
		tests:            reg.Tests(),
		runner:           pipeline,
		sweeper:          retention.NewSweeper(config.Log, fileStore, time.Now),
		service:          service.New(serviceConfig(config, nil)),
		out:              os.Stdout,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func serviceConfig(config *Config, levels service.LevelController) service.Config {
	return service.Config{
		Log:            config.Log,
		HealthzAddr:    config.HealthzAddr,
		Levels:         levels,
		MetricsEnabled: config.Metrics.Enabled,
		MetricsAddr:    config.Metrics.ListenAddr,
		MetricsPort:    config.Metrics.ListenPort,
	}
}

// Start runs the plan immediately, then periodically at the configured interval.
// Start implements the cliapp.Lifecycle interface.
func (h *Harness) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			h.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	h.ctx = ctx
	h.done = make(chan struct{})
	h.running.Store(true)

	if err := h.service.Start(); err != nil {
		h.running.Store(false)
		return NewRuntimeError(err)
	}

	if h.config.RunOnce {
		h.config.Log.Info("Starting rpc-harness in run-once mode", "version", h.version)
	} else {
		h.config.Log.Info("Starting rpc-harness in continuous mode", "version", h.version, "interval", h.config.RunInterval)
	}

	err := h.runPlan()

	if h.config.RunOnce {
		if err != nil {
			h.config.Log.Error("Run-once plan completed with errors", "err", err)
			return err
		}
		h.config.Log.Info("Plan completed, exiting (run-once mode)")
		go func() {
			h.shutdownCallback(nil)
		}()
		return nil
	}
	if err != nil {
		h.config.Log.Error("Error running plan", "err", err)
	}

	// Start a goroutine for periodic plan execution
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.config.Log.Debug("Starting periodic plan runner goroutine", "interval", h.config.RunInterval)

		for {
			select {
			case <-time.After(h.config.RunInterval):
				if !h.running.Load() {
					h.config.Log.Debug("Service stopped, exiting periodic plan runner")
					return
				}

				h.config.Log.Info("Running periodic plan")
				if err := h.runPlan(); err != nil {
					h.config.Log.Error("Error running periodic plan", "err", err)
				}
				h.config.Log.Info("Plan run interval", "interval", h.config.RunInterval)

			case <-h.done:
				h.config.Log.Debug("Done signal received, stopping periodic plan runner")
				return

			case <-ctx.Done():
				h.config.Log.Debug("Context canceled, stopping periodic plan runner")
				h.running.Store(false)
				return
			}
		}
	}()
	h.config.Log.Debug("rpc-harness started successfully")
	return nil
}

// runPlan sweeps old reports, then runs every test in order. A failing test
// does not stop the ones after it. Runner failures yield a TestFailureError;
// anything else yields a RuntimeError.
func (h *Harness) runPlan() error {
	h.sweeper.Sweep(h.config.ReportsDir, h.config.CleanupAge)

	h.config.Log.Info("Running test plan", "tests", len(h.tests))
	start := time.Now()
	var (
		results     = make([]*runner.Result, 0, len(h.tests))
		failures    []error
		runtimeErrs []error
	)
	for _, test := range h.tests {
		if err := h.ctx.Err(); err != nil {
			runtimeErrs = append(runtimeErrs, fmt.Errorf("plan interrupted before %s: %w", test, err))
			break
		}
		result, err := h.runner.Run(h.ctx, test)
		if result != nil {
			results = append(results, result)
		}
		if err == nil {
			continue
		}
		if runner.IsRunError(err) {
			failures = append(failures, fmt.Errorf("%s: %w", test, err))
		} else {
			runtimeErrs = append(runtimeErrs, fmt.Errorf("%s: %w", test, err))
		}
	}

	h.mu.Lock()
	h.results = results
	h.mu.Unlock()

	printResultsTable(h.out, results, time.Since(start))
	h.config.Log.Info("Plan run completed",
		"tests", len(h.tests),
		"failed", len(failures),
		"errors", len(runtimeErrs),
		"duration", time.Since(start))

	if len(runtimeErrs) > 0 {
		return NewRuntimeError(errors.Join(append(runtimeErrs, failures...)...))
	}
	if len(failures) > 0 {
		return NewTestFailureError(errors.Join(failures...).Error())
	}
	return nil
}

// Results returns the results of the last plan run.
func (h *Harness) Results() []*runner.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*runner.Result, len(h.results))
	copy(out, h.results)
	return out
}

// Stop stops the harness.
// Stop implements the cliapp.Lifecycle interface.
func (h *Harness) Stop(ctx context.Context) error {
	h.config.Log.Info("Stopping rpc-harness")

	if !h.running.Load() {
		h.config.Log.Debug("Service already stopped, nothing to do")
		h.service.Shutdown()
		return nil
	}

	h.running.Store(false)

	h.config.Log.Debug("Sending done signal to goroutines")
	close(h.done)

	waitCh := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-ctx.Done():
		h.config.Log.Warn("Timed out waiting for plan runner to stop", "err", ctx.Err())
	}

	h.service.Shutdown()
	h.config.Log.Info("rpc-harness stopped successfully")
	return nil
}

// Stopped returns true if the harness is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (h *Harness) Stopped() bool {
	return !h.running.Load()
}
