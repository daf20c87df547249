package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("env file missing"),
		},
		{
			name: "error with special chars",
			err:  errors.New("env_TCP.json: no such file"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("newman   exited"),
		},
	}

	validLabelRegex := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Regexp(t, validLabelRegex, errToLabel(tt.err))
		})
	}
}

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(runsTotal.WithLabelValues("TCP", "Legacy", "pass"))
	RecordRun("TCP", "Legacy", "pass", 1500*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(runsTotal.WithLabelValues("TCP", "Legacy", "pass")))
	assert.Equal(t, 1.5, testutil.ToFloat64(runDuration.WithLabelValues("TCP", "Legacy")))
}

func TestRecordExecutions(t *testing.T) {
	RecordExecutions("WS", 3, 2, 1)

	assert.Equal(t, float64(3), testutil.ToFloat64(executionsTotal.WithLabelValues("WS", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(executionsTotal.WithLabelValues("WS", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(skippedExecutionsTotal.WithLabelValues("WS")))
}

func TestRecordReportAndSweep(t *testing.T) {
	RecordReport("csv", "all", "ok")
	assert.Equal(t, float64(1), testutil.ToFloat64(reportsTotal.WithLabelValues("csv", "all", "ok")))

	before := testutil.ToFloat64(sweptFilesTotal)
	RecordSweep(2)
	assert.Equal(t, before+2, testutil.ToFloat64(sweptFilesTotal))
}

func TestRecordErrorDetails(t *testing.T) {
	RecordErrorDetails("pipeline", nil)
	RecordErrorDetails("pipeline", errors.New("boom"))
	assert.Equal(t, float64(1), testutil.ToFloat64(errorsTotal.WithLabelValues("pipeline.boom")))
}
