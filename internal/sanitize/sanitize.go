// Package sanitize provides allow-list HTML cleaning for untrusted
// free-text input. All functions are deterministic, side-effect-free
// and never fail: malformed markup degrades to stripping everything.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy  = bluemonday.StrictPolicy()
	messagePolicy = newMessagePolicy()
)

// MessageTags is the tag set permitted in message bodies.
var MessageTags = []string{"p", "br", "strong", "em", "u"}

func newMessagePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(MessageTags...)
	return p
}

// Strict removes all markup from s and returns plain, trimmed text with
// character entities decoded. Used for theme, person and company fields.
func Strict(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(decode(s))))
}

// Message removes all markup outside the permitted formatting tag set
// (p, br, strong, em, u). Text content stays entity-escaped so the
// result is safe to render as HTML.
func Message(s string) string {
	return strings.TrimSpace(messagePolicy.Sanitize(decode(s)))
}

// decode resolves pre-escaped entities to a fixpoint so the policy sees
// real markup instead of entity-encoded tags. Without this a
// multiply-escaped payload would survive one sanitization pass. The
// loop terminates because UnescapeString strictly shrinks the string
// whenever it changes it.
func decode(s string) string {
	for {
		decoded := html.UnescapeString(s)
		if decoded == s {
			return s
		}
		s = decoded
	}
}
