package notify

import (
	"strings"

	"github.com/beevik/etree"
)

// HTMLBody renders a minimal HTML alternative part for a notification: a
// heading paragraph followed by one paragraph per detail line.
func HTMLBody(heading string, lines []string) string {
	doc := etree.NewDocument()
	html := doc.CreateElement("html")
	body := html.CreateElement("body")
	h := body.CreateElement("h3")
	h.SetText(heading)
	for _, line := range lines {
		if line == "" {
			body.CreateElement("br")
			continue
		}
		p := body.CreateElement("p")
		p.SetText(line)
	}
	out, err := doc.WriteToString()
	if err != nil {
		// etree cannot fail writing to a string buffer for this tree.
		return ""
	}
	return out
}

// TextBody joins detail lines into the plain text part.
func TextBody(heading string, lines []string) string {
	parts := append([]string{heading, ""}, lines...)
	return strings.Join(parts, "\n")
}
