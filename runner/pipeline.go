package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/rpc-harness/metrics"
	"github.com/ethereum-optimism/infra/rpc-harness/reporting"
	"github.com/ethereum-optimism/infra/rpc-harness/results"
	"github.com/ethereum-optimism/infra/rpc-harness/types"
)

// Store is the persistence the pipeline needs.
type Store interface {
	reporting.Store
	MkdirAll(dir string) error
}

// Config holds configuration for creating a Pipeline
type Config struct {
	Executor   Executor
	Store      Store
	Log        log.Logger
	Collection string // Path to the collection file
	EnvDir     string // Directory holding env_<test>.json files, test name lowercased
	ReportsDir string // Directory report artifacts are written to
	Results    results.Config
	Formats    []reporting.Format
	MaxLength  int // Maximum formatted body length in markdown and CSV reports
	Now        func() time.Time

	DisableHTMLReport bool
}

// Result describes one completed pipeline run.
type Result struct {
	Test        types.TestConfig
	RunID       string
	Status      types.TestStatus
	Paths       reporting.Paths
	Aggregation *results.Aggregation
	Written     []string
	Duration    time.Duration
	Error       error
}

// Pipeline runs one test through the collection runner, aggregates the
// executions and writes the report artifacts.
type Pipeline struct {
	executor   Executor
	store      Store
	log        log.Logger
	collection string
	envDir     string
	reportsDir string
	results    results.Config
	writer     *reporting.Writer
	now        func() time.Time
	tracer     trace.Tracer
	html       bool
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("collection is required")
	}
	if cfg.ReportsDir == "" {
		return nil, errors.New("reports directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Results == (results.Config{}) {
		cfg.Results = results.DefaultConfig()
	}
	if err := cfg.Results.Validate(); err != nil {
		return nil, err
	}

	writer, err := reporting.NewWriter(reporting.WriterConfig{
		Log:       cfg.Log,
		Store:     cfg.Store,
		Formats:   cfg.Formats,
		MaxLength: cfg.MaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create report writer: %w", err)
	}

	return &Pipeline{
		executor:   cfg.Executor,
		store:      cfg.Store,
		log:        cfg.Log,
		collection: cfg.Collection,
		envDir:     cfg.EnvDir,
		reportsDir: cfg.ReportsDir,
		results:    cfg.Results,
		writer:     writer,
		now:        cfg.Now,
		tracer:     otel.Tracer("collection runner"),
		html:       !cfg.DisableHTMLReport,
	}, nil
}

// EnvFile returns the environment file used for a test. The test name is
// lowercased like the report artifact names.
func (p *Pipeline) EnvFile(test types.TestConfig) string {
	return filepath.Join(p.envDir, envFilePrefix+strings.ToLower(test.Name)+envFileExt)
}

// Run executes test end to end. Failures are logged with the test context and
// returned; the Result is always non-nil.
func (p *Pipeline) Run(ctx context.Context, test types.TestConfig) (*Result, error) {
	runID := uuid.New().String()
	logger := p.log.New("run_id", runID, "test", test.Name, "folder", test.Folder)

	ctx, span := p.tracer.Start(ctx, fmt.Sprintf("test %s/%s", test.Name, test.Folder))
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("test", test.Name),
		attribute.String("folder", test.Folder),
	)

	start := p.now()
	result := &Result{Test: test, RunID: runID}
	err := p.run(ctx, logger, test, start, result)
	result.Duration = p.now().Sub(start)

	switch {
	case err == nil:
		result.Status = types.TestStatusPass
	case IsRunError(err):
		result.Status = types.TestStatusFail
	default:
		result.Status = types.TestStatusError
	}
	metrics.RecordRun(test.Name, test.Folder, string(result.Status), result.Duration)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Test run failed", "err", err)
		metrics.RecordErrorDetails("pipeline", err)
		result.Error = err
		return result, err
	}
	logger.Info("Test run finished", "duration", result.Duration, "reports", len(result.Written))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, logger log.Logger, test types.TestConfig, start time.Time, result *Result) error {
	if err := test.Validate(); err != nil {
		return &PreconditionError{Test: test.Name, Err: err}
	}

	envFile := p.EnvFile(test)
	if _, err := os.Stat(envFile); err != nil {
		return &PreconditionError{Test: test.Name, Err: fmt.Errorf("environment file %s: %w", envFile, err)}
	}
	if err := p.store.MkdirAll(p.reportsDir); err != nil {
		return err
	}

	paths := reporting.NewPaths(p.reportsDir, test.Name, test.Folder, start)
	result.Paths = paths

	req := Request{
		Collection:  p.collection,
		Folder:      test.Folder,
		Environment: envFile,
		OnStart: func() {
			logger.Info("Test run started")
		},
	}
	if p.html {
		req.HTMLReport = paths.HTML()
	}

	logger.Info("Running collection", "collection", p.collection, "env", envFile)
	summary, err := p.execute(ctx, req)
	if err != nil {
		return err
	}
	logCompletion(logger, summary)

	agg, err := p.aggregate(ctx, logger, summary)
	if err != nil {
		if errors.Is(err, results.ErrInvalidSummary) {
			return &PreconditionError{Test: test.Name, Err: err}
		}
		return err
	}
	result.Aggregation = agg
	metrics.RecordExecutions(test.Name, agg.Success.Total(), agg.Failure.Total(), agg.Skipped)
	logger.Info("Results gathered",
		"success_groups", agg.Success.Len(),
		"success", agg.Success.Total(),
		"failure_groups", agg.Failure.Len(),
		"failure", agg.Failure.Total(),
		"skipped", agg.Skipped)

	_, span := p.tracer.Start(ctx, "write reports")
	defer span.End()
	written, err := p.writer.Write(paths, agg)
	result.Written = written
	if err != nil {
		return fmt.Errorf("failed to write reports: %w", err)
	}
	return nil
}

func (p *Pipeline) execute(ctx context.Context, req Request) (*types.RunSummary, error) {
	ctx, span := p.tracer.Start(ctx, "execute collection")
	defer span.End()
	summary, err := p.executor.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, &RunError{Reason: "runner returned no summary"}
	}
	return summary, nil
}

func (p *Pipeline) aggregate(ctx context.Context, logger log.Logger, summary *types.RunSummary) (*results.Aggregation, error) {
	_, span := p.tracer.Start(ctx, "aggregate results")
	defer span.End()
	return results.NewAggregator(logger, p.results, p.now).Aggregate(summary)
}

func logCompletion(logger log.Logger, summary *types.RunSummary) {
	items := 0
	if summary.Collection != nil {
		items = len(summary.Collection.Item)
	}
	executions := len(summary.Executions())
	if summary.Run == nil {
		logger.Info("Collection run completed", "items", items, "requests", executions)
		return
	}
	stats := summary.Run.Stats
	logger.Info("Collection run completed",
		"items", items,
		"requests", executions,
		"requests_failed", stats.Requests.Failed,
		"assertions", stats.Assertions.Total,
		"assertions_failed", stats.Assertions.Failed,
		"response_avg_ms", summary.Run.Timings.ResponseAverage)
}
