package types

import (
	"fmt"
	"strings"
)

// TestConfig names one collection folder to run with a named environment.
type TestConfig struct {
	Name   string `yaml:"name" toml:"name"`
	Folder string `yaml:"folder" toml:"folder"`
}

// String returns the test in name:folder form.
func (t TestConfig) String() string {
	return fmt.Sprintf("%s:%s", t.Name, t.Folder)
}

// Validate checks that the test can be turned into environment and report file names.
func (t TestConfig) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("test name is required")
	}
	if strings.TrimSpace(t.Folder) == "" {
		return fmt.Errorf("folder is required for test %q", t.Name)
	}
	if strings.ContainsAny(t.Name, `/\`) {
		return fmt.Errorf("test name %q must not contain path separators", t.Name)
	}
	if strings.ContainsAny(t.Folder, `/\`) {
		return fmt.Errorf("folder %q must not contain path separators", t.Folder)
	}
	return nil
}

// TestStatus is the outcome of one pipeline run.
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusError TestStatus = "error"
)
