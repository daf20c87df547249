package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/rpc-harness/types"
)

// DefaultTests is the plan used when neither a plan file nor tests are given.
var DefaultTests = []types.TestConfig{
	{Name: "TCP", Folder: "Legacy"},
}

// Plan is the on-disk test plan.
type Plan struct {
	Tests []types.TestConfig `yaml:"tests" toml:"tests"`
}

// Registry holds the ordered, validated list of tests to run.
type Registry struct {
	config Config
	tests  []types.TestConfig
}

// Config contains registry configuration
type Config struct {
	Log      log.Logger
	PlanFile string   // Optional YAML or TOML plan file
	Tests    []string // Additional tests in name:folder form
}

// NewRegistry creates a new registry instance. Plan file entries come first,
// followed by Tests. Duplicates are dropped.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	var tests []types.TestConfig
	if cfg.PlanFile != "" {
		plan, err := LoadPlan(cfg.PlanFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load plan: %w", err)
		}
		tests = append(tests, plan.Tests...)
	}
	for _, arg := range cfg.Tests {
		test, err := ParseTestArg(arg)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	if len(tests) == 0 {
		cfg.Log.Debug("No tests configured, using default plan")
		tests = append(tests, DefaultTests...)
	}

	r := &Registry{config: cfg}
	seen := make(map[string]bool, len(tests))
	for _, test := range tests {
		if err := test.Validate(); err != nil {
			return nil, fmt.Errorf("invalid test %s: %w", test, err)
		}
		if seen[test.String()] {
			cfg.Log.Warn("Ignoring duplicate test", "test", test.Name, "folder", test.Folder)
			continue
		}
		seen[test.String()] = true
		r.tests = append(r.tests, test)
	}

	cfg.Log.Debug("Registry loaded", "len(tests)", len(r.tests))
	return r, nil
}

// Tests returns the tests in run order.
func (r *Registry) Tests() []types.TestConfig {
	out := make([]types.TestConfig, len(r.tests))
	copy(out, r.tests)
	return out
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// ParseTestArg parses a test given as name:folder.
func ParseTestArg(arg string) (types.TestConfig, error) {
	name, folder, ok := strings.Cut(arg, ":")
	if !ok {
		return types.TestConfig{}, fmt.Errorf("invalid test %q, expected name:folder", arg)
	}
	test := types.TestConfig{Name: strings.TrimSpace(name), Folder: strings.TrimSpace(folder)}
	if err := test.Validate(); err != nil {
		return types.TestConfig{}, fmt.Errorf("invalid test %q: %w", arg, err)
	}
	return test, nil
}

// LoadPlan reads a plan file. The format is chosen by extension: .yaml, .yml
// or .toml.
func LoadPlan(path string) (*Plan, error) {
	log.Debug("Reading plan file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}

	var plan Plan
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("parsing plan file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &plan); err != nil {
			return nil, fmt.Errorf("parsing plan file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported plan file extension %q", ext)
	}
	return &plan, nil
}
