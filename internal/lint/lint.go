// Package lint flags enhancement expressions placed where their output is
// interpreted as code by the browser: inside <script> elements and inside
// event-handler attributes. These are authoring mistakes that turn a
// template value into an injection surface, so `weft check --lint` reports
// them before deployment.
package lint

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Finding is one lint report, positioned by byte offset into the source.
type Finding struct {
	Pos     int    `json:"pos" yaml:"pos"`
	Context string `json:"context" yaml:"context"`
	Message string `json:"message" yaml:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("offset %d: %s (%s)", f.Pos, f.Message, f.Context)
}

// expressionMarker opens an inline expression in template syntax.
const expressionMarker = "{="

// Check tokenizes the source as HTML and reports every enhancement
// expression found in a script-code or event-handler context.
func Check(source string) []Finding {
	var findings []Finding

	z := html.NewTokenizer(strings.NewReader(source))
	offset := 0
	inScript := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return findings
		}
		raw := string(z.Raw())

		switch tt {
		case html.StartTagToken:
			tok := z.Token()
			if tok.Data == "script" {
				inScript = true
			}
			for _, attr := range tok.Attr {
				if !strings.HasPrefix(strings.ToLower(attr.Key), "on") {
					continue
				}
				if idx := strings.Index(attr.Val, expressionMarker); idx >= 0 {
					// Offset is approximate when the attribute value was
					// entity-decoded by the tokenizer.
					attrPos := offset
					if rel := strings.Index(raw, attr.Val); rel >= 0 {
						attrPos += rel
					}
					findings = append(findings, Finding{
						Pos:     attrPos + idx,
						Context: "attribute " + attr.Key,
						Message: "expression output feeds an event-handler attribute",
					})
				}
			}

		case html.EndTagToken:
			if tok := z.Token(); tok.Data == "script" {
				inScript = false
			}

		case html.TextToken:
			if inScript {
				if idx := strings.Index(raw, expressionMarker); idx >= 0 {
					findings = append(findings, Finding{
						Pos:     offset + idx,
						Context: "script element",
						Message: "expression output is interpreted as script code",
					})
				}
			}
		}

		offset += len(raw)
	}
}
