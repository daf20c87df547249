package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/rpc-harness/types"
)

var _ Executor = (*NewmanExecutor)(nil)

// Executor runs a collection folder and returns the exported run summary.
type Executor interface {
	Run(ctx context.Context, req Request) (*types.RunSummary, error)
}

// Request describes one collection run.
type Request struct {
	Collection  string
	Folder      string
	Environment string
	// HTMLReport is where the runner writes its HTML report. Empty disables it.
	HTMLReport string
	// OnStart, when set, is called once the runner process has started.
	OnStart func()
}

// CmdBuilder creates the command for the runner and a cleanup function.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// DefaultCmdBuilder starts the runner as a child process bound to ctx.
func DefaultCmdBuilder(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	cmd := exec.CommandContext(ctx, name, arg...)
	return cmd, func() {}
}

// RunError reports a collection run that did not produce a usable summary.
type RunError struct {
	Reason   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RunError) Error() string {
	var b strings.Builder
	b.WriteString("collection run failed: ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr: %s", e.Stderr)
	}
	return b.String()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ExecutorConfig configures a NewmanExecutor.
type ExecutorConfig struct {
	Log          log.Logger
	Binary       string
	HTMLReporter string
	Timeout      time.Duration
	CmdBuilder   CmdBuilder
}

// NewmanExecutor runs collections with the newman CLI and reads the summary
// from its json reporter export.
type NewmanExecutor struct {
	log          log.Logger
	binary       string
	htmlReporter string
	timeout      time.Duration
	cmdBuilder   CmdBuilder
}

func NewNewmanExecutor(cfg ExecutorConfig) (*NewmanExecutor, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultNewmanBinary
	}
	if cfg.HTMLReporter == "" {
		cfg.HTMLReporter = DefaultHTMLReporter
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = DefaultCmdBuilder
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative: %s", cfg.Timeout)
	}
	return &NewmanExecutor{
		log:          cfg.Log,
		binary:       cfg.Binary,
		htmlReporter: cfg.HTMLReporter,
		timeout:      cfg.Timeout,
		cmdBuilder:   cfg.CmdBuilder,
	}, nil
}

// Run executes the collection and decodes its summary. A non-zero exit with a
// valid summary means assertions failed, which is not a run failure.
func (e *NewmanExecutor) Run(ctx context.Context, req Request) (*types.RunSummary, error) {
	if req.Collection == "" {
		return nil, errors.New("collection cannot be empty")
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	exportFile, err := os.CreateTemp("", "rpc-harness-summary-*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create summary temp file: %w", err)
	}
	exportPath := exportFile.Name()
	_ = exportFile.Close()
	defer func() {
		_ = os.Remove(exportPath)
	}()

	args := e.buildArgs(req, exportPath)
	cmd, cleanup := e.cmdBuilder(ctx, e.binary, args...)
	defer cleanup()

	stderr := newTailBuffer(defaultStderrTailBytes)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr

	e.log.Debug("Starting newman", "binary", e.binary, "args", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return nil, &RunError{Reason: "failed to start runner", Err: err}
	}
	if req.OnStart != nil {
		req.OnStart()
	}
	start := time.Now()
	waitErr := cmd.Wait()
	duration := time.Since(start)

	exitCode := 0
	var exitErr *exec.ExitError
	if waitErr != nil {
		if !errors.As(waitErr, &exitErr) {
			return nil, &RunError{Reason: "runner did not complete", Err: waitErr, Stderr: cleanOutput(stderr)}
		}
		exitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &RunError{Reason: "runner interrupted", Err: ctxErr, ExitCode: exitCode, Stderr: cleanOutput(stderr)}
	}

	summary, err := readSummary(exportPath)
	if err != nil {
		return nil, &RunError{Reason: "no usable run summary", Err: err, ExitCode: exitCode, Stderr: cleanOutput(stderr)}
	}
	if marker, ok := summary.ErrorMarker(); ok {
		return nil, &RunError{Reason: "runner reported an error", Err: errors.New(marker), ExitCode: exitCode, Stderr: cleanOutput(stderr)}
	}

	if exitCode != 0 {
		e.log.Warn("newman exited with failures", "exit_code", exitCode, "duration", duration)
	} else {
		e.log.Debug("newman finished", "duration", duration)
	}
	return summary, nil
}

func (e *NewmanExecutor) buildArgs(req Request, exportPath string) []string {
	reporters := []string{cliReporter, jsonReporter}
	if req.HTMLReport != "" {
		reporters = append(reporters, e.htmlReporter)
	}

	args := []string{RunCommand, req.Collection}
	if req.Folder != "" {
		args = append(args, FolderFlag, req.Folder)
	}
	if req.Environment != "" {
		args = append(args, EnvironmentFlag, req.Environment)
	}
	args = append(args, ReportersFlag, strings.Join(reporters, ","), JSONExportFlag, exportPath)
	if req.HTMLReport != "" {
		args = append(args, fmt.Sprintf("--reporter-%s-export", e.htmlReporter), req.HTMLReport)
	}
	return append(args, ColorFlag, ColorOff)
}

func readSummary(path string) (*types.RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("summary export is empty")
	}
	var summary types.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return &summary, nil
}

func cleanOutput(b *tailBuffer) string {
	out := strings.TrimSpace(stripansi.Strip(b.String()))
	if b.Truncated() {
		out = "..." + out
	}
	return out
}
