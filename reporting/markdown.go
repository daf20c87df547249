package reporting

import (
	"errors"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ethereum-optimism/infra/rpc-harness/results"
)

var markdownHeader = table.Row{"Method", "Request Body", "Response Body", "Response Time"}

// MarkdownEmitter renders one table row per record. Cell content is escaped by
// the markdown renderer, so pipes and newlines in payloads keep rows intact.
type MarkdownEmitter struct {
	MaxLength int
}

func NewMarkdownEmitter(maxLength int) *MarkdownEmitter {
	return &MarkdownEmitter{MaxLength: maxLength}
}

func (e *MarkdownEmitter) Format() Format {
	return Markdown
}

func (e *MarkdownEmitter) Render(c *results.Collection) ([]byte, error) {
	if c == nil {
		return nil, errors.New("results are required")
	}

	t := table.NewWriter()
	t.AppendHeader(markdownHeader)
	for _, key := range c.Keys() {
		g, _ := c.Group(key)
		for _, r := range g.Details() {
			t.AppendRow(table.Row{
				key.String(),
				codeSpan(FormatJSON(r.RequestBody, e.MaxLength)),
				codeSpan(FormatJSON(r.ResponseBody, e.MaxLength)),
				r.ResponseTime,
			})
		}
	}
	return []byte(t.RenderMarkdown() + "\n"), nil
}

// codeSpan wraps s in a backtick fence one longer than the longest backtick
// run inside it, so embedded backticks cannot close the span.
func codeSpan(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r != '`' {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	fence := strings.Repeat("`", longest+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		s = " " + s + " "
	}
	return fence + s + fence
}
