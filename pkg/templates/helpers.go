package templates

import (
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
)

// Funcs are available to every template
func Funcs() template.FuncMap {
	return template.FuncMap{
		"lower": Lower,
		"count": Count,
	}
}

// Lower lowercases a label for use inside a sentence. Invalid UTF-8 is
// dropped first so the copy never carries broken bytes.
func Lower(s string) string {
	return strings.ToLower(strings.ToValidUTF8(s, ""))
}

// Count formats a number with thousands separators ("1,249")
func Count(n interface{}) string {
	switch v := n.(type) {
	case int:
		return humanize.Comma(int64(v))
	case int64:
		return humanize.Comma(v)
	case uint64:
		return humanize.Comma(int64(v))
	default:
		return ""
	}
}
