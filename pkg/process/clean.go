package process

import (
	"regexp"
	"strings"
)

var (
	blankLineRuns = regexp.MustCompile(`\n\s*\n`)
	horizontalWS  = regexp.MustCompile(`[ \t]+`)
	boilerplate   = regexp.MustCompile(`(?is)(Menu|Navigation|Footer|Header|Sidebar|Breadcrumb).*?(\n\n|\z)`)
	bareURLTokens = regexp.MustCompile(`https?://[^\s]+`)
)

// CleanWebContent strips navigational boilerplate and raw URLs from crawled
// markdown/text. Deterministic with no error states; empty input yields
// empty output.
//
// Order matters: blank-line collapse first so boilerplate blocks terminate at
// a predictable double newline, then whitespace collapse, boilerplate strip,
// bare-URL strip, final trim.
func CleanWebContent(content string) string {
	content = blankLineRuns.ReplaceAllString(content, "\n\n")
	content = horizontalWS.ReplaceAllString(content, " ")
	content = boilerplate.ReplaceAllString(content, "$2")
	content = bareURLTokens.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
