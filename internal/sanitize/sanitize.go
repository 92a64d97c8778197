// Package sanitize performs hygiene on untrusted message text before it is
// embedded in a model prompt: markup is stripped and the literal delimiter
// strings used to frame prompts are neutralized. This is defense-in-depth;
// the sentinel classifier remains the primary control.
package sanitize

import (
	"regexp"
	"strings"
)

// Placeholder replaces any neutralized delimiter occurrence.
const Placeholder = "[FILTERED]"

// Prompt framing markers. The sanitizer removes literal occurrences of these
// from untrusted content so the model cannot be tricked into treating body
// text as framing.
const (
	BeginUntrustedMarker = "===BEGIN UNTRUSTED INPUT==="
	EndUntrustedMarker   = "===END UNTRUSTED INPUT==="
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]*>`)

	// Delimiter tokens and header-like strings matched case-insensitively,
	// tolerating arbitrary whitespace and optional "=" framing runs.
	delimiterRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)=*\s*begin\s+untrusted\s+input\s*=*`),
		regexp.MustCompile(`(?i)=*\s*end\s+untrusted\s+input\s*=*`),
		regexp.MustCompile(`(?i)=*\s*system\s+instructions?\s*:?\s*=*`),
		regexp.MustCompile(`(?i)=*\s*developer\s+instructions?\s*:?\s*=*`),
		regexp.MustCompile(`(?i)\[\s*system\s*\]`),
		regexp.MustCompile(`(?i)<\s*\|?\s*im_(start|end)\s*\|?\s*>`),
	}

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
	)
)

// StripHTML removes script/style blocks and all remaining markup, decodes
// common entities and collapses whitespace runs.
func StripHTML(s string) string {
	s = scriptRe.ReplaceAllString(s, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	s = strings.ReplaceAll(s, "<br />", "\n")
	s = strings.ReplaceAll(s, "</p>", "\n")
	s = strings.ReplaceAll(s, "</div>", "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)

	// Collapse horizontal whitespace runs left behind by removed markup.
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(s)
}

// NeutralizeDelimiters replaces any literal prompt-framing token found in
// untrusted text with a fixed placeholder, case-insensitively.
func NeutralizeDelimiters(s string) string {
	for _, re := range delimiterRes {
		s = re.ReplaceAllString(s, Placeholder)
	}
	return s
}

// Clean runs the full hygiene pass used for anything that ends up inside a
// model prompt.
func Clean(s string) string {
	return NeutralizeDelimiters(StripHTML(s))
}
