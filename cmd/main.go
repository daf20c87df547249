package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	harness "github.com/ethereum-optimism/infra/rpc-harness"
	"github.com/ethereum-optimism/infra/rpc-harness/flags"
	"github.com/ethereum-optimism/infra/rpc-harness/logging"
	"github.com/ethereum-optimism/infra/rpc-harness/store"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "rpc-harness"
	app.Usage = "RPC API collection runner and report generator"
	app.Description = "rpc-harness runs Postman collections with newman and writes per-method success and failure reports"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), harness.ExitCode(err)))
		}
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	console := oplog.FormatHandler(logCfg.Format, logCfg.Color)(oplog.AppOut(ctx))

	logger, err := logging.New(logging.Config{
		Console: console,
		Level:   logCfg.Level,
		File:    ctx.String(flags.LogFile.Name),
		Store:   store.New(),
	})
	if err != nil {
		return nil, harness.NewRuntimeError(fmt.Errorf("failed to create logger: %w", err))
	}
	oplog.SetGlobalLogHandler(logger.Handler())

	cfg, err := harness.NewConfig(ctx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, harness.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	svc, err := harness.New(ctx.Context, cfg, Version, closeApp, harness.WithLevelController(logger))
	if err != nil {
		_ = logger.Close()
		return nil, harness.NewRuntimeError(fmt.Errorf("failed to create harness: %w", err))
	}

	return &closingLifecycle{Lifecycle: svc, closer: logger.Close}, nil
}

// closingLifecycle flushes the log file once the harness has stopped.
type closingLifecycle struct {
	cliapp.Lifecycle
	closer func() error
}

func (c *closingLifecycle) Stop(ctx context.Context) error {
	err := c.Lifecycle.Stop(ctx)
	return errors.Join(err, c.closer())
}
