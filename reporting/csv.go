package reporting

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ethereum-optimism/infra/rpc-harness/results"
	"github.com/ethereum-optimism/infra/rpc-harness/types"
)

var csvHeader = []string{
	"Method",
	"Request Body",
	"Status Code",
	"Response Body",
	"Response Time",
	"Response Size",
	"Timing Details",
}

// CSVEmitter renders one record per line with every field quoted.
type CSVEmitter struct {
	MaxLength int
}

func NewCSVEmitter(maxLength int) *CSVEmitter {
	return &CSVEmitter{MaxLength: maxLength}
}

func (e *CSVEmitter) Format() Format {
	return CSV
}

func (e *CSVEmitter) Render(c *results.Collection) ([]byte, error) {
	if c == nil {
		return nil, errors.New("results are required")
	}

	var b strings.Builder
	writeCSVRecord(&b, csvHeader)
	for _, key := range c.Keys() {
		g, _ := c.Group(key)
		for _, r := range g.Details() {
			writeCSVRecord(&b, []string{
				key.String(),
				FormatJSON(r.RequestBody, e.MaxLength),
				strconv.Itoa(r.StatusCode),
				FormatJSON(r.ResponseBody, e.MaxLength),
				r.ResponseTime,
				r.ResponseSize,
				TimingDetails(r.TimingPhases),
			})
		}
	}
	return []byte(b.String()), nil
}

// TimingDetails flattens the DNS, TCP and first byte phases. Missing phases are 0.
func TimingDetails(p *types.TimingPhases) string {
	var dns, tcp, firstByte float64
	if p != nil {
		dns, tcp, firstByte = p.DNS, p.TCP, p.FirstByte
	}
	return "DNS:" + formatMillis(dns) + "ms; TCP:" + formatMillis(tcp) + "ms; FirstByte:" + formatMillis(firstByte) + "ms;"
}

func formatMillis(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSVRecord(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}
