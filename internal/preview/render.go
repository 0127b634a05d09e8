package preview

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

// HTML extracts the document and renders it as a sanitized HTML fragment.
// All text content is escaped before rendering and the result is passed
// through the sanitizer, so document content can never inject markup into
// the results page.
func HTML(name string, data []byte) (string, error) {
	doc, err := Extract(name, data)
	if err != nil {
		return "", err
	}
	return Render(doc), nil
}

// Render turns an extracted document into a sanitized HTML fragment.
func Render(doc Doc) string {
	var b strings.Builder
	for _, block := range doc.Blocks {
		text := html.EscapeString(block.Text)
		if block.Level > 0 {
			fmt.Fprintf(&b, "<h%d>%s</h%d>\n", block.Level, text, block.Level)
			continue
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", text)
	}
	return sanitizer.Sanitize(b.String())
}
