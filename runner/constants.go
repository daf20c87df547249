package runner

import "time"

// newman invocation constants
const (
	DefaultNewmanBinary = "newman"
	DefaultHTMLReporter = "html"

	// DefaultRunTimeout bounds a single collection run.
	DefaultRunTimeout = 30 * time.Minute

	RunCommand      = "run"
	FolderFlag      = "--folder"
	EnvironmentFlag = "-e"
	ReportersFlag   = "-r"
	JSONExportFlag  = "--reporter-json-export"
	ColorFlag       = "--color"
	ColorOff        = "off"

	cliReporter  = "cli"
	jsonReporter = "json"

	envFilePrefix = "env_"
	envFileExt    = ".json"

	defaultStderrTailBytes = 64 * 1024
)
