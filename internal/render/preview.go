package render

import (
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Previewer prepares rendered HTML for inline display.
type Previewer struct {
	policy *bluemonday.Policy
}

// NewPreviewer returns a Previewer. With sanitize set, markup is first run
// through a user-generated-content policy so scripts never reach the preview.
func NewPreviewer(sanitize bool) *Previewer {
	p := &Previewer{}
	if sanitize {
		policy := bluemonday.UGCPolicy()
		policy.AllowStyling()
		p.policy = policy
	}
	return p
}

// Preview returns html with every non-ASCII rune written as a numeric entity.
func (p *Previewer) Preview(html string) string {
	if p != nil && p.policy != nil {
		html = p.policy.Sanitize(html)
	}
	return EscapeNonASCII(html)
}

// EscapeNonASCII replaces runes above 0x7F with &#N; entities.
func EscapeNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		b.WriteString("&#")
		b.WriteString(strconv.Itoa(int(r)))
		b.WriteByte(';')
	}
	return b.String()
}
