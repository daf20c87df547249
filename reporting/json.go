package reporting

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/ethereum-optimism/infra/rpc-harness/results"
)

const jsonIndent = "    "

// JSONEmitter writes the collection as {"<key>": {"details": [...], "count": N}}
// with four space indentation. Values are never truncated.
type JSONEmitter struct{}

func NewJSONEmitter() *JSONEmitter {
	return &JSONEmitter{}
}

func (e *JSONEmitter) Format() Format {
	return JSON
}

func (e *JSONEmitter) Render(c *results.Collection) ([]byte, error) {
	if c == nil {
		return nil, errors.New("results is required")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", jsonIndent)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
