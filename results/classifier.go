// Package results classifies newman executions and aggregates them into
// per-method collections split by outcome.
package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/rpc-harness/types"
)

const (
	// InvalidJSONMethod is the method name reported for unparseable request bodies.
	InvalidJSONMethod = "INVALID_JSON"
	// UnknownMethod is used when a request body carries no method.
	UnknownMethod = "unknown_method"

	VersionV1 = "v1"
	VersionV2 = "v2"

	// mmrpcV2 is the only mmrpc value that selects the v2 protocol.
	mmrpcV2 = "2.0"

	// TimestampLayout is UTC ISO-8601 with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// InvalidResponseBody replaces response payloads that are not valid JSON.
var InvalidResponseBody = json.RawMessage(`{"error":"Invalid JSON response"}`)

var (
	ErrMissingExchange = errors.New("execution has no request or response")
	ErrEmptyBody       = errors.New("request body is empty")
	errNullBody        = errors.New("request body is null")
)

// RequestParseError is returned when a request body is not valid JSON.
type RequestParseError struct {
	Raw string
	Err error
}

func (e *RequestParseError) Error() string {
	return fmt.Sprintf("invalid request body: %v", e.Err)
}

func (e *RequestParseError) Unwrap() error {
	return e.Err
}

// RequestBody is the parsed form of a JSON-RPC style request body.
type RequestBody struct {
	// Method is the method field as text. Empty means absent, null, false,
	// zero or an empty string.
	Method string
	// MMRPC is the protocol version discriminator, empty when absent or not a string.
	MMRPC string
	Raw   json.RawMessage
}

// ParseRequestBody parses raw request text. Bodies that are valid JSON but not
// objects parse successfully and carry no method.
func ParseRequestBody(raw string) (RequestBody, error) {
	trimmed := strings.TrimSpace(raw)
	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return RequestBody{}, &RequestParseError{Raw: raw, Err: err}
	}
	if value == nil {
		return RequestBody{}, &RequestParseError{Raw: raw, Err: errNullBody}
	}

	body := RequestBody{Raw: json.RawMessage(trimmed)}
	if fields, ok := value.(map[string]any); ok {
		body.Method = methodText(fields["method"])
		if mmrpc, ok := fields["mmrpc"].(string); ok {
			body.MMRPC = mmrpc
		}
	}
	return body, nil
}

// methodText renders a decoded method value. Numbers and booleans use their
// JSON text; objects and arrays are re-encoded compactly.
func methodText(v any) string {
	switch m := v.(type) {
	case nil:
		return ""
	case string:
		return m
	case bool:
		if !m {
			return ""
		}
		return "true"
	case float64:
		if m == 0 {
			return ""
		}
		return formatNumber(m)
	default:
		out, err := json.Marshal(m)
		if err != nil {
			return ""
		}
		return string(out)
	}
}

// GroupKey identifies a logical RPC operation. The status code never takes part in it.
type GroupKey struct {
	Method  string
	Version string
}

// NewGroupKey derives the key of a parsed request body.
func NewGroupKey(body RequestBody) GroupKey {
	method := body.Method
	if method == "" {
		method = UnknownMethod
	}
	version := VersionV1
	if body.MMRPC == mmrpcV2 {
		version = VersionV2
	}
	return GroupKey{Method: method, Version: version}
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Method, k.Version)
}

// Outcome is the bucket a record is placed in.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Config holds the classification bounds.
type Config struct {
	// SuccessMin and SuccessMax bound the half-open range of success status codes.
	SuccessMin int
	SuccessMax int
}

func DefaultConfig() Config {
	return Config{SuccessMin: 200, SuccessMax: 300}
}

func (c Config) Validate() error {
	if c.SuccessMin >= c.SuccessMax {
		return fmt.Errorf("success status range [%d, %d) is empty", c.SuccessMin, c.SuccessMax)
	}
	return nil
}

// Outcome returns the bucket for a status code.
func (c Config) Outcome(code int) Outcome {
	if code >= c.SuccessMin && code < c.SuccessMax {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// Record is the reported form of one execution. Bodies are kept as raw JSON so
// that their key order survives serialization.
type Record struct {
	RequestBody  json.RawMessage     `json:"requestBody"`
	StatusCode   int                 `json:"statusCode"`
	ResponseBody json.RawMessage     `json:"responseBody"`
	ResponseTime string              `json:"responseTime"`
	ResponseSize string              `json:"responseSize"`
	TimingPhases *types.TimingPhases `json:"timingPhases,omitempty"`
	Timestamp    string              `json:"timestamp"`
}

// Classification is the result of classifying one execution.
type Classification struct {
	Key     GroupKey
	Outcome Outcome
	Record  Record
	// ResponseParsed is false when the response payload was replaced by InvalidResponseBody.
	ResponseParsed bool
}

// Classifier turns executions into classified records.
type Classifier struct {
	cfg Config
	now func() time.Time
}

func NewClassifier(cfg Config, now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{cfg: cfg, now: now}
}

// Classify parses and classifies a single execution. Executions that cannot be
// reported return ErrMissingExchange, ErrEmptyBody or a *RequestParseError. A
// body of only whitespace is not empty; it fails to parse.
func (c *Classifier) Classify(exec types.Execution) (Classification, error) {
	if exec.Request == nil || exec.Response == nil {
		return Classification{}, ErrMissingExchange
	}
	if exec.Request.Body == nil || exec.Request.Body.Raw == "" {
		return Classification{}, ErrEmptyBody
	}

	body, err := ParseRequestBody(exec.Request.Body.Raw)
	if err != nil {
		return Classification{}, err
	}

	resp := exec.Response
	responseBody, parsed := parseResponse(resp.Stream)

	return Classification{
		Key:     NewGroupKey(body),
		Outcome: c.cfg.Outcome(resp.Code),
		Record: Record{
			RequestBody:  body.Raw,
			StatusCode:   resp.Code,
			ResponseBody: responseBody,
			ResponseTime: formatNumber(resp.ResponseTime) + "ms",
			ResponseSize: formatNumber(resp.ResponseSize) + " bytes",
			TimingPhases: resp.TimingPhases,
			Timestamp:    c.now().UTC().Format(TimestampLayout),
		},
		ResponseParsed: parsed,
	}, nil
}

func parseResponse(stream types.Stream) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(stream)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return InvalidResponseBody, false
	}
	out := make(json.RawMessage, len(trimmed))
	copy(out, trimmed)
	return out, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
