package render

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"

	"github.com/domini04/bluestar/runtime/types"
)

const markdownExtensions = blackfriday.CommonExtensions | blackfriday.FencedCode | blackfriday.NoEmptyLineBeforeBlock

var policy = newPolicy()

// newPolicy is the UGC policy plus the language-* classes blackfriday puts
// on fenced code, which Ghost's highlighter keys on.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w.+#-]+$`)).OnElements("code")
	return p
}

// HTML renders body blocks to sanitized HTML.
func HTML(blocks []types.ContentBlock) (string, error) {
	md, err := Markdown(blocks)
	if err != nil {
		return "", err
	}
	raw := blackfriday.Run([]byte(md), blackfriday.WithExtensions(markdownExtensions))
	return strings.TrimSpace(string(policy.SanitizeBytes(raw))), nil
}
