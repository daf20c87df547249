// Package reporting renders aggregated results as markdown, CSV and JSON report
// artifacts and hands the complete content to a store.
package reporting

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/rpc-harness/results"
)

// Format names a report artifact type.
type Format string

const (
	JSON     Format = "json"
	Markdown Format = "markdown"
	CSV      Format = "csv"
)

var AllFormats = []Format{JSON, Markdown, CSV}

// ParseFormats validates a list of format names. Duplicates are dropped.
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool)
	var out []Format
	for _, name := range names {
		f := Format(strings.ToLower(strings.TrimSpace(name)))
		if f == "" {
			continue
		}
		if f == "md" {
			f = Markdown
		}
		switch f {
		case JSON, Markdown, CSV:
		default:
			return nil, fmt.Errorf("unknown report format %q, must be one of %v", name, AllFormats)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Emitter renders a collection into the bytes of one artifact.
type Emitter interface {
	Format() Format
	Render(c *results.Collection) ([]byte, error)
}

// Store persists complete artifacts.
type Store interface {
	WriteFile(path string, data []byte) error
}

// SerializationError is returned when an emitter cannot render its artifact.
// Nothing has been written when it is returned.
type SerializationError struct {
	Format Format
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to render %s report: %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// PersistenceError is returned when a rendered artifact cannot be stored.
type PersistenceError struct {
	Format Format
	Path   string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to write %s report %s: %v", e.Format, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Emit renders c in full and only then hands it to the store.
func Emit(store Store, e Emitter, c *results.Collection, path string) error {
	data, err := e.Render(c)
	if err != nil {
		return &SerializationError{Format: e.Format(), Err: err}
	}
	if err := store.WriteFile(path, data); err != nil {
		return &PersistenceError{Format: e.Format(), Path: path, Err: err}
	}
	return nil
}

// Paths names the artifacts of one run.
type Paths struct {
	Base string
}

// NewPaths returns the artifact paths for a run of test/folder started at ts.
func NewPaths(dir, testName, folder string, ts time.Time) Paths {
	name := fmt.Sprintf("%s_%s_%d", strings.ToLower(testName), strings.ToLower(folder), ts.Unix())
	return Paths{Base: filepath.Join(dir, name)}
}

func (p Paths) SuccessJSON() string { return p.Base + "_success.json" }
func (p Paths) FailureJSON() string { return p.Base + "_fail.json" }
func (p Paths) Markdown() string    { return p.Base + ".md" }
func (p Paths) CSV() string         { return p.Base + ".csv" }
func (p Paths) HTML() string        { return p.Base + ".html" }
