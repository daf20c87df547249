package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/rpc-harness/reporting"
	"github.com/ethereum-optimism/infra/rpc-harness/registry"
	"github.com/ethereum-optimism/infra/rpc-harness/results"
	"github.com/ethereum-optimism/infra/rpc-harness/retention"
	"github.com/ethereum-optimism/infra/rpc-harness/runner"
)

const EnvVarPrefix = "RPC_HARNESS"

var (
	Collection = &cli.StringFlag{
		Name:     "collection",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "COLLECTION"),
		Usage:    "Path to the Postman collection to run (eg. 'collection.json')",
	}
	EnvDir = &cli.StringFlag{
		Name:    "env-dir",
		Value:   ".",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENV_DIR"),
		Usage:   "Directory holding the env_<test>.json environment files, test name lowercased",
	}
	ReportsDir = &cli.StringFlag{
		Name:    "reports-dir",
		Value:   "reports",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORTS_DIR"),
		Usage:   "Directory report artifacts are written to and swept from",
	}
	Plan = &cli.StringFlag{
		Name:    "plan",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PLAN"),
		Usage:   "Path to a YAML or TOML test plan listing {name, folder} entries",
	}
	Tests = &cli.StringSliceFlag{
		Name:    "test",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST"),
		Usage:   "Test to run as name:folder (repeatable). Defaults to TCP:Legacy when no plan is given",
		Action: func(_ *cli.Context, args []string) error {
			for _, arg := range args {
				if _, err := registry.ParseTestArg(arg); err != nil {
					return err
				}
			}
			return nil
		},
	}
	NewmanBinary = &cli.StringFlag{
		Name:    "newman-binary",
		Value:   runner.DefaultNewmanBinary,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NEWMAN_BINARY"),
		Usage:   "Path to the newman binary used to run collections",
	}
	HTMLReporter = &cli.StringFlag{
		Name:    "html-reporter",
		Value:   runner.DefaultHTMLReporter,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HTML_REPORTER"),
		Usage:   "newman reporter used for the HTML report (eg. 'html', 'htmlextra'). Empty disables the HTML report",
	}
	ReportFormats = &cli.StringSliceFlag{
		Name:    "report-formats",
		Value:   cli.NewStringSlice(string(reporting.JSON)),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_FORMATS"),
		Usage:   fmt.Sprintf("Report artifacts to write, any of %v", reporting.AllFormats),
		Action: func(_ *cli.Context, names []string) error {
			_, err := reporting.ParseFormats(names)
			return err
		},
	}
	SuccessStatusMin = &cli.IntFlag{
		Name:    "success-status-min",
		Value:   results.DefaultConfig().SuccessMin,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUCCESS_STATUS_MIN"),
		Usage:   "Lowest response status code classified as success (inclusive)",
	}
	SuccessStatusMax = &cli.IntFlag{
		Name:    "success-status-max",
		Value:   results.DefaultConfig().SuccessMax,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUCCESS_STATUS_MAX"),
		Usage:   "Status code above the success range (exclusive)",
	}
	MaxJSONLength = &cli.IntFlag{
		Name:    "max-json-length",
		Value:   reporting.DefaultMaxLength,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MAX_JSON_LENGTH"),
		Usage:   "Maximum length of request and response bodies in markdown and CSV reports",
		Action: func(_ *cli.Context, v int) error {
			if v < 0 {
				return fmt.Errorf("max-json-length cannot be negative: %d", v)
			}
			return nil
		},
	}
	CleanupAge = &cli.DurationFlag{
		Name:    "cleanup-age",
		Value:   retention.DefaultMaxAge,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CLEANUP_AGE"),
		Usage:   "Report artifacts older than this are deleted before each run",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between plan runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	RunTimeout = &cli.DurationFlag{
		Name:    "run-timeout",
		Value:   runner.DefaultRunTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_TIMEOUT"),
		Usage:   "Timeout for a single collection run. Set to 0 to disable.",
	}
	LogFile = &cli.StringFlag{
		Name:    "log.file",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOG_FILE"),
		Usage:   "Also write logs to this file. The file is truncated on start.",
	}
	HealthzPort = &cli.IntFlag{
		Name:    "healthz.port",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_PORT"),
		Usage:   "Port for the /healthz endpoint. Set to 0 or omit to disable.",
	}
)

var requiredFlags = []cli.Flag{
	Collection,
}

var optionalFlags = []cli.Flag{
	EnvDir,
	ReportsDir,
	Plan,
	Tests,
	NewmanBinary,
	HTMLReporter,
	ReportFormats,
	SuccessStatusMin,
	SuccessStatusMax,
	MaxJSONLength,
	CleanupAge,
	RunInterval,
	RunTimeout,
	LogFile,
	HealthzPort,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
