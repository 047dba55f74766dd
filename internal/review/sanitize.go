package review

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans free text before it enters review state.
type Sanitizer interface {
	Sanitize(raw string) string
}

// SanitizerFunc adapts a plain function to Sanitizer.
type SanitizerFunc func(string) string

func (f SanitizerFunc) Sanitize(raw string) string { return f(raw) }

type markupSanitizer struct {
	policy *bluemonday.Policy
}

// readable decodes the entities the policy emits for plain punctuation. Angle brackets stay
// escaped so nothing decoded here can form markup.
var readable = strings.NewReplacer("&#39;", "'", "&#34;", `"`, "&quot;", `"`, "&amp;", "&")

// NewMarkupSanitizer strips every HTML element and attribute. Input entities are decoded
// before the policy runs, so escaped markup is stripped like literal markup.
func NewMarkupSanitizer() Sanitizer {
	return markupSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s markupSanitizer) Sanitize(raw string) string {
	return readable.Replace(s.policy.Sanitize(html.UnescapeString(raw)))
}
