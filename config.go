package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/rpc-harness/flags"
	"github.com/ethereum-optimism/infra/rpc-harness/reporting"
	"github.com/ethereum-optimism/infra/rpc-harness/results"
	"github.com/ethereum-optimism/infra/rpc-harness/service"
)

// Config holds the application configuration
type Config struct {
	Collection    string // Absolute path to the collection file
	EnvDir        string // Absolute directory holding env_<test>.json files
	ReportsDir    string // Absolute directory for report artifacts
	PlanFile      string // Absolute path to the test plan, if any
	Tests         []string
	NewmanBinary  string
	HTMLReporter  string // Empty disables the HTML report
	Formats       []reporting.Format
	Results       results.Config
	MaxJSONLength int
	CleanupAge    time.Duration // Report artifacts older than this are swept before each plan run
	RunInterval   time.Duration // Interval between plan runs
	RunOnce       bool          // Indicates if the service should exit after one plan run
	RunTimeout    time.Duration // Timeout for a single collection run
	HealthzAddr   string
	Metrics       opmetrics.CLIConfig
	Log           log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	collection := ctx.String(flags.Collection.Name)
	if collection == "" {
		return nil, errors.New("collection is required")
	}

	absCollection, err := filepath.Abs(collection)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for collection '%s': %w", collection, err)
	}
	envDir, err := filepath.Abs(ctx.String(flags.EnvDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for env directory '%s': %w", ctx.String(flags.EnvDir.Name), err)
	}
	reportsDir, err := filepath.Abs(ctx.String(flags.ReportsDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for reports directory '%s': %w", ctx.String(flags.ReportsDir.Name), err)
	}

	var planFile string
	if plan := ctx.String(flags.Plan.Name); plan != "" {
		planFile, err = filepath.Abs(plan)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for plan '%s': %w", plan, err)
		}
	}

	formats, err := reporting.ParseFormats(ctx.StringSlice(flags.ReportFormats.Name))
	if err != nil {
		return nil, err
	}

	resultsCfg := results.Config{
		SuccessMin: ctx.Int(flags.SuccessStatusMin.Name),
		SuccessMax: ctx.Int(flags.SuccessStatusMax.Name),
	}
	if err := resultsCfg.Validate(); err != nil {
		return nil, err
	}

	maxLen := ctx.Int(flags.MaxJSONLength.Name)
	if maxLen < 0 {
		return nil, fmt.Errorf("max JSON length cannot be negative: %d", maxLen)
	}
	cleanupAge := ctx.Duration(flags.CleanupAge.Name)
	if cleanupAge <= 0 {
		return nil, fmt.Errorf("cleanup age must be positive: %s", cleanupAge)
	}
	runInterval := ctx.Duration(flags.RunInterval.Name)
	if runInterval < 0 {
		return nil, fmt.Errorf("run interval cannot be negative: %s", runInterval)
	}
	runTimeout := ctx.Duration(flags.RunTimeout.Name)
	if runTimeout < 0 {
		return nil, fmt.Errorf("run timeout cannot be negative: %s", runTimeout)
	}

	return &Config{
		Collection:    absCollection,
		EnvDir:        envDir,
		ReportsDir:    reportsDir,
		PlanFile:      planFile,
		Tests:         ctx.StringSlice(flags.Tests.Name),
		NewmanBinary:  ctx.String(flags.NewmanBinary.Name),
		HTMLReporter:  ctx.String(flags.HTMLReporter.Name),
		Formats:       formats,
		Results:       resultsCfg,
		MaxJSONLength: maxLen,
		CleanupAge:    cleanupAge,
		RunInterval:   runInterval,
		RunOnce:       runInterval == 0,
		RunTimeout:    runTimeout,
		HealthzAddr:   service.HealthzAddr(service.DefaultHealthzHost, ctx.Int(flags.HealthzPort.Name)),
		Metrics:       opmetrics.ReadCLIConfig(ctx),
		Log:           log,
	}, nil
}
