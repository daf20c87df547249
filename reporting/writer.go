package reporting

import (
	"errors"
	"slices"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/rpc-harness/metrics"
	"github.com/ethereum-optimism/infra/rpc-harness/results"
)

// Writer emits every configured artifact for an aggregation. Artifacts are
// independent: a failure in one is logged and does not stop the others.
type Writer struct {
	log     log.Logger
	store   Store
	formats []Format
	maxLen  int
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	Log     log.Logger
	Store   Store
	Formats []Format
	// MaxLength bounds formatted bodies in markdown and CSV reports.
	MaxLength int
}

func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	formats := cfg.Formats
	if len(formats) == 0 {
		formats = []Format{JSON}
	}
	return &Writer{
		log:     cfg.Log,
		store:   cfg.Store,
		formats: formats,
		maxLen:  cfg.MaxLength,
	}, nil
}

type artifact struct {
	emitter    Emitter
	collection *results.Collection
	path       string
	outcome    string
}

// Write emits the artifacts for agg and returns the paths that were written
// along with all failures joined together.
func (w *Writer) Write(paths Paths, agg *results.Aggregation) ([]string, error) {
	if agg == nil {
		return nil, &SerializationError{Format: JSON, Err: errors.New("results is required")}
	}
	var artifacts []artifact
	if slices.Contains(w.formats, JSON) {
		emitter := NewJSONEmitter()
		artifacts = append(artifacts,
			artifact{emitter: emitter, collection: agg.Success, path: paths.SuccessJSON(), outcome: string(results.OutcomeSuccess)},
			artifact{emitter: emitter, collection: agg.Failure, path: paths.FailureJSON(), outcome: string(results.OutcomeFailure)},
		)
	}
	if slices.Contains(w.formats, Markdown) || slices.Contains(w.formats, CSV) {
		combined := agg.Combined()
		if slices.Contains(w.formats, Markdown) {
			artifacts = append(artifacts, artifact{emitter: NewMarkdownEmitter(w.maxLen), collection: combined, path: paths.Markdown(), outcome: "all"})
		}
		if slices.Contains(w.formats, CSV) {
			artifacts = append(artifacts, artifact{emitter: NewCSVEmitter(w.maxLen), collection: combined, path: paths.CSV(), outcome: "all"})
		}
	}

	var written []string
	var errs []error
	for _, a := range artifacts {
		format := string(a.emitter.Format())
		if err := Emit(w.store, a.emitter, a.collection, a.path); err != nil {
			w.log.Error("Failed to write report", "format", format, "path", a.path, "err", err)
			metrics.RecordReport(format, a.outcome, reportErrorLabel(err))
			errs = append(errs, err)
			continue
		}
		w.log.Info("Report saved", "format", format, "path", a.path)
		metrics.RecordReport(format, a.outcome, "ok")
		written = append(written, a.path)
	}
	return written, errors.Join(errs...)
}

func reportErrorLabel(err error) string {
	var serErr *SerializationError
	if errors.As(err, &serErr) {
		return "serialization_error"
	}
	return "persistence_error"
}
