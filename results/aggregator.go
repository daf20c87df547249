package results

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/rpc-harness/types"
	"github.com/ethereum/go-ethereum/log"
)

// ErrInvalidSummary is returned when a run summary has no executions to aggregate.
var ErrInvalidSummary = errors.New("invalid summary object")

// Aggregation is the outcome of folding one run's executions.
type Aggregation struct {
	Success *Collection
	Failure *Collection
	// Processed counts executions that produced a record, Skipped those that were dropped.
	Processed int
	Skipped   int
	// InvalidResponses counts records whose response body was replaced.
	InvalidResponses int
}

// Combined returns a collection holding the success records followed by the failure records.
func (a *Aggregation) Combined() *Collection {
	out := NewCollection()
	for _, c := range []*Collection{a.Success, a.Failure} {
		if c == nil {
			continue
		}
		for _, key := range c.Keys() {
			g, _ := c.Group(key)
			for _, r := range g.details {
				out.Add(key, r)
			}
		}
	}
	return out
}

// Aggregator classifies executions in order and folds them into outcome collections.
type Aggregator struct {
	log        log.Logger
	classifier *Classifier
}

func NewAggregator(logger log.Logger, cfg Config, now func() time.Time) *Aggregator {
	if logger == nil {
		logger = log.New()
	}
	return &Aggregator{
		log:        logger,
		classifier: NewClassifier(cfg, now),
	}
}

// Aggregate folds every execution of summary. Individual executions that cannot
// be processed are logged and skipped; only a missing executions list is an error.
func (a *Aggregator) Aggregate(summary *types.RunSummary) (*Aggregation, error) {
	executions := summary.Executions()
	if executions == nil {
		return nil, ErrInvalidSummary
	}

	agg := &Aggregation{
		Success: NewCollection(),
		Failure: NewCollection(),
	}
	for i, exec := range executions {
		c, err := a.classify(exec)
		if err != nil {
			agg.Skipped++
			a.logSkipped(i, exec, err)
			continue
		}
		if !c.ResponseParsed {
			agg.InvalidResponses++
			a.log.Warn("Failed to parse response body", "index", i, "key", c.Key.String(), "status", c.Record.StatusCode)
		}

		switch c.Outcome {
		case OutcomeSuccess:
			agg.Success.Add(c.Key, c.Record)
		default:
			agg.Failure.Add(c.Key, c.Record)
		}
		agg.Processed++
	}

	a.log.Debug("Aggregated executions",
		"executions", len(executions),
		"processed", agg.Processed,
		"skipped", agg.Skipped,
		"success_groups", agg.Success.Len(),
		"failure_groups", agg.Failure.Len())
	return agg, nil
}

// classify runs the classifier, converting a panic into an error so one bad
// execution never aborts the aggregation.
func (a *Aggregator) classify(exec types.Execution) (c Classification, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing execution: %v", r)
		}
	}()
	return a.classifier.Classify(exec)
}

func (a *Aggregator) logSkipped(i int, exec types.Execution, err error) {
	var parseErr *RequestParseError
	switch {
	case errors.Is(err, ErrMissingExchange):
		a.log.Warn("Skipping execution with missing request or response", "index", i, "item", itemName(exec))
	case errors.Is(err, ErrEmptyBody):
		a.log.Warn("Request body is empty", "index", i, "item", itemName(exec))
	case errors.As(err, &parseErr):
		a.log.Error("Failed to parse request body", "index", i, "method", InvalidJSONMethod, "err", parseErr.Err, "body", parseErr.Raw)
	default:
		a.log.Error("Error processing execution", "index", i, "item", itemName(exec), "err", err)
	}
}

func itemName(exec types.Execution) string {
	if exec.Item == nil {
		return ""
	}
	return exec.Item.Name
}
