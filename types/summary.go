// Package types contains the shared types used across rpc-harness.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RunSummary is the summary newman exports with the json reporter.
// Only the fields the harness reads are modelled.
type RunSummary struct {
	Collection *Collection    `json:"collection,omitempty"`
	Run        *Run           `json:"run,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
}

// Collection is the collection description embedded in a run summary.
type Collection struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Item []json.RawMessage `json:"item"`
}

// Run holds the statistics and ordered executions of a collection run.
type Run struct {
	Stats   RunStats   `json:"stats"`
	Timings RunTimings `json:"timings"`
	// Executions is nil when the summary carried no executions key.
	Executions []Execution      `json:"executions"`
	Failures   []json.RawMessage `json:"failures,omitempty"`
	Error      json.RawMessage   `json:"error,omitempty"`
}

// RunStats mirrors newman's run.stats block.
type RunStats struct {
	Iterations StatCount `json:"iterations"`
	Items      StatCount `json:"items"`
	Requests   StatCount `json:"requests"`
	Tests      StatCount `json:"tests"`
	Assertions StatCount `json:"assertions"`
}

type StatCount struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// RunTimings mirrors newman's run.timings block. Values are milliseconds.
type RunTimings struct {
	ResponseAverage float64 `json:"responseAverage"`
	ResponseMin     float64 `json:"responseMin"`
	ResponseMax     float64 `json:"responseMax"`
	Started         int64   `json:"started"`
	Completed       int64   `json:"completed"`
}

// Execution is one request/response pair produced by a single collection step.
type Execution struct {
	Item     *Item     `json:"item,omitempty"`
	Request  *Request  `json:"request,omitempty"`
	Response *Response `json:"response,omitempty"`
}

type Item struct {
	Name string `json:"name"`
}

type Request struct {
	Method string       `json:"method,omitempty"`
	Body   *RequestBody `json:"body,omitempty"`
}

type RequestBody struct {
	Mode string `json:"mode,omitempty"`
	Raw  string `json:"raw,omitempty"`
}

type Response struct {
	Code         int           `json:"code"`
	Status       string        `json:"status,omitempty"`
	Stream       Stream        `json:"stream,omitempty"`
	ResponseTime float64       `json:"responseTime"`
	ResponseSize float64       `json:"responseSize"`
	TimingPhases *TimingPhases `json:"timingPhases,omitempty"`
}

// TimingPhases are the per-phase durations of a request in milliseconds.
type TimingPhases struct {
	Prepare   float64 `json:"prepare"`
	Wait      float64 `json:"wait"`
	DNS       float64 `json:"dns"`
	TCP       float64 `json:"tcp"`
	FirstByte float64 `json:"firstByte"`
	Download  float64 `json:"download"`
	Process   float64 `json:"process"`
	Total     float64 `json:"total"`
}

// Stream is a raw response payload. Newman exports it either as a serialized
// Node Buffer ({"type":"Buffer","data":[...]}) or as a plain string.
type Stream []byte

type bufferJSON struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

func (s *Stream) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}
	if trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return err
		}
		*s = Stream(str)
		return nil
	}
	var buf bufferJSON
	if err := json.Unmarshal(trimmed, &buf); err != nil {
		return fmt.Errorf("invalid response stream: %w", err)
	}
	out := make([]byte, len(buf.Data))
	for i, b := range buf.Data {
		if b < 0 || b > 255 {
			return fmt.Errorf("invalid response stream: byte %d out of range at index %d", b, i)
		}
		out[i] = byte(b)
	}
	*s = out
	return nil
}

func (s Stream) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	data := make([]int, len(s))
	for i, b := range s {
		data[i] = int(b)
	}
	return json.Marshal(bufferJSON{Type: "Buffer", Data: data})
}

// Executions returns the executions of the run, or nil if the summary has none.
func (s *RunSummary) Executions() []Execution {
	if s == nil || s.Run == nil {
		return nil
	}
	return s.Run.Executions
}

// ErrorMarker returns the error the runner attached to the summary, if any.
func (s *RunSummary) ErrorMarker() (string, bool) {
	if s == nil {
		return "", false
	}
	if isErrorMarker(s.Error) {
		return describeMarker(s.Error), true
	}
	if s.Run != nil && isErrorMarker(s.Run.Error) {
		return describeMarker(s.Run.Error), true
	}
	return "", false
}

func isErrorMarker(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch string(trimmed) {
	case "null", "false", `""`, "{}":
		return false
	}
	return true
}

func describeMarker(raw json.RawMessage) string {
	var withMessage struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &withMessage); err == nil && withMessage.Message != "" {
		return withMessage.Message
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return string(bytes.TrimSpace(raw))
}
