package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultMaxLength is the number of characters FormatJSON keeps before truncating.
	DefaultMaxLength = 100
	truncationMarker = "..."
)

// FormatJSON renders v as indented JSON for display and truncates it to maxLen
// characters. Strings and byte slices holding JSON are re-indented with their
// key order intact; other text is used as is. A nil value renders as "".
// FormatJSON never panics.
func FormatJSON(v any, maxLen int) (out string) {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	defer func() {
		if r := recover(); r != nil {
			out = truncate(fmt.Sprintf("%v", v), maxLen)
		}
	}()
	return truncate(render(v), maxLen)
}

func render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return indentText(val)
	case []byte:
		return indentText(string(val))
	case json.RawMessage:
		return indentText(string(val))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func indentText(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return s
	}
	return buf.String()
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + truncationMarker
}
