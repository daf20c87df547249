package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "rpc_harness"
)

var (
	Debug                = false
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of collection runs by result",
	}, []string{
		"test",
		"folder",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the last collection run",
	}, []string{
		"test",
		"folder",
	})

	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "executions_total",
		Help:      "Count of classified executions by outcome",
	}, []string{
		"test",
		"outcome",
	})

	skippedExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "skipped_executions_total",
		Help:      "Count of executions dropped during aggregation",
	}, []string{
		"test",
	})

	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "reports_total",
		Help:      "Count of report artifacts by format and result",
	}, []string{
		"format",
		"outcome",
		"result",
	})

	sweptFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "swept_files_total",
		Help:      "Count of expired report files removed",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordRun records the result and duration of one collection run.
func RecordRun(test string, folder string, result string, duration time.Duration) {
	if Debug {
		log.Debug("metric inc",
			"m", "runs_total",
			"test", test,
			"folder", folder,
			"result", result)
	}
	runsTotal.WithLabelValues(test, folder, result).Inc()
	runDuration.WithLabelValues(test, folder).Set(duration.Seconds())
}

// RecordExecutions records the aggregation counts of one run.
func RecordExecutions(test string, success int, failure int, skipped int) {
	executionsTotal.WithLabelValues(test, "success").Add(float64(success))
	executionsTotal.WithLabelValues(test, "failure").Add(float64(failure))
	skippedExecutionsTotal.WithLabelValues(test).Add(float64(skipped))
}

func RecordReport(format string, outcome string, result string) {
	reportsTotal.WithLabelValues(format, outcome, result).Inc()
}

func RecordSweep(removed int) {
	sweptFilesTotal.Add(float64(removed))
}
