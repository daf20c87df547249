package results

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/optimism/op-service/testlog"

	"github.com/ethereum-optimism/infra/rpc-harness/types"
)

func summaryOf(execs ...types.Execution) *types.RunSummary {
	if execs == nil {
		execs = []types.Execution{}
	}
	return &types.RunSummary{Run: &types.Run{Executions: execs}}
}

func newTestAggregator(t *testing.T) (*Aggregator, *testlog.CapturingHandler) {
	logger, capture := testlog.CaptureLogger(t, log.LevelDebug)
	return NewAggregator(logger, DefaultConfig(), fixedNow), capture
}

func TestAggregateInvalidSummary(t *testing.T) {
	agg, _ := newTestAggregator(t)

	for name, summary := range map[string]*types.RunSummary{
		"nil summary":        nil,
		"missing run":        {},
		"missing executions": {Run: &types.Run{}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := agg.Aggregate(summary)
			assert.ErrorIs(t, err, ErrInvalidSummary)
		})
	}
}

func TestAggregateEmptyExecutions(t *testing.T) {
	agg, _ := newTestAggregator(t)
	out, err := agg.Aggregate(summaryOf())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Success.Len())
	assert.Equal(t, 0, out.Failure.Len())
}

func TestAggregateSameKeyInBothBuckets(t *testing.T) {
	agg, _ := newTestAggregator(t)
	out, err := agg.Aggregate(summaryOf(
		execution(`{"method":"get_balance"}`, 200, `{"balance":"1"}`),
		execution(`{"method":"get_balance"}`, 500, `{"error":"internal"}`),
	))
	require.NoError(t, err)

	key := GroupKey{Method: "get_balance", Version: VersionV1}
	success, ok := out.Success.Group(key)
	require.True(t, ok)
	assert.Equal(t, 1, success.Count())
	failure, ok := out.Failure.Group(key)
	require.True(t, ok)
	assert.Equal(t, 1, failure.Count())

	raw, err := json.Marshal(out.Success)
	require.NoError(t, err)
	var decoded map[string]struct {
		Details []Record `json:"details"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 1, decoded["get_balance (v1)"].Count)
	assert.Len(t, decoded["get_balance (v1)"].Details, 1)
}

func TestAggregatePreservesOrder(t *testing.T) {
	agg, _ := newTestAggregator(t)
	const n = 5
	var execs []types.Execution
	for i := 0; i < n; i++ {
		execs = append(execs, execution(`{"method":"version","id":`+string(rune('0'+i))+`}`, 200, `{}`))
	}
	out, err := agg.Aggregate(summaryOf(execs...))
	require.NoError(t, err)

	g, ok := out.Success.Group(GroupKey{Method: "version", Version: VersionV1})
	require.True(t, ok)
	require.Equal(t, n, g.Count())
	for i, r := range g.Details() {
		assert.Contains(t, string(r.RequestBody), `"id":`+string(rune('0'+i)))
	}
	assert.Equal(t, n, out.Processed)
}

func TestAggregatePartialFailure(t *testing.T) {
	agg, capture := newTestAggregator(t)
	second := execution(`{"method":"version"}`, 200, ``)
	second.Response.Stream = nil

	out, err := agg.Aggregate(summaryOf(
		execution(`{"method":"version"}`, 200, `{"result":"2.1.0"}`),
		second,
		execution(`{"method":"version"}`, 200, `{"result":"2.1.0"}`),
	))
	require.NoError(t, err)

	g, ok := out.Success.Group(GroupKey{Method: "version", Version: VersionV1})
	require.True(t, ok)
	require.Equal(t, 3, g.Count())
	assert.Equal(t, string(InvalidResponseBody), string(g.Details()[1].ResponseBody))
	assert.Equal(t, 1, out.InvalidResponses)
	assert.NotNil(t, capture.FindLog(testlog.NewLevelFilter(log.LevelWarn), testlog.NewMessageContainsFilter("Failed to parse response body")))
}

func TestAggregateMissingBody(t *testing.T) {
	agg, capture := newTestAggregator(t)
	noBody := execution(`{"method":"version"}`, 200, `{}`)
	noBody.Request.Body = nil

	out, err := agg.Aggregate(summaryOf(
		execution(`{"method":"version"}`, 200, `{}`),
		noBody,
		execution(`{"method":"version"}`, 404, `{}`),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, out.Success.Total())
	assert.Equal(t, 1, out.Failure.Total())
	assert.Equal(t, 1, out.Skipped)
	assert.NotNil(t, capture.FindLog(testlog.NewLevelFilter(log.LevelWarn), testlog.NewMessageContainsFilter("Request body is empty")))
}

func TestAggregateNonStringMethodAndBlankBody(t *testing.T) {
	agg, capture := newTestAggregator(t)

	out, err := agg.Aggregate(summaryOf(
		execution(`{"method":42}`, 200, `{}`),
		execution("  \n ", 200, `{}`),
	))
	require.NoError(t, err)

	assert.Equal(t, []GroupKey{{Method: "42", Version: VersionV1}}, out.Success.Keys())
	assert.Equal(t, 1, out.Skipped)

	rec := capture.FindLog(testlog.NewLevelFilter(log.LevelError), testlog.NewMessageContainsFilter("Failed to parse request body"))
	require.NotNil(t, rec)
	assert.Equal(t, "  \n ", rec.AttrValue("body"))
	assert.Nil(t, capture.FindLog(testlog.NewMessageContainsFilter("Request body is empty")))
}

func TestAggregateDropsUnparseableRequests(t *testing.T) {
	agg, capture := newTestAggregator(t)
	noResponse := execution(`{"method":"version"}`, 200, `{}`)
	noResponse.Response = nil

	out, err := agg.Aggregate(summaryOf(
		execution(`{"method":`, 200, `{}`),
		noResponse,
		execution(`{"mmrpc":"2.0","method":"my_balance"}`, 200, `{}`),
	))
	require.NoError(t, err)

	assert.Equal(t, []GroupKey{{Method: "my_balance", Version: VersionV2}}, out.Success.Keys())
	assert.Equal(t, 0, out.Failure.Len())
	assert.Equal(t, 2, out.Skipped)

	rec := capture.FindLog(testlog.NewLevelFilter(log.LevelError), testlog.NewMessageContainsFilter("Failed to parse request body"))
	require.NotNil(t, rec)
	assert.Equal(t, InvalidJSONMethod, rec.AttrValue("method"))
	assert.Equal(t, `{"method":`, rec.AttrValue("body"))
	assert.NotNil(t, capture.FindLog(testlog.NewLevelFilter(log.LevelWarn), testlog.NewMessageContainsFilter("missing request or response")))
}

func TestCombinedKeepsSuccessFirst(t *testing.T) {
	agg, _ := newTestAggregator(t)
	out, err := agg.Aggregate(summaryOf(
		execution(`{"method":"b"}`, 500, `{}`),
		execution(`{"method":"a"}`, 200, `{}`),
		execution(`{"method":"b"}`, 200, `{}`),
	))
	require.NoError(t, err)

	combined := out.Combined()
	assert.Equal(t, []GroupKey{{Method: "a", Version: VersionV1}, {Method: "b", Version: VersionV1}}, combined.Keys())
	g, _ := combined.Group(GroupKey{Method: "b", Version: VersionV1})
	require.Equal(t, 2, g.Count())
	assert.Equal(t, 200, g.Details()[0].StatusCode)
	assert.Equal(t, 500, g.Details()[1].StatusCode)
}
