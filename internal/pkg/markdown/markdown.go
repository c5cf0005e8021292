// Package markdown renders sanitized HTML as Markdown or plain text.
package markdown

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"jaytaylor.com/html2text"
)

// Options used for every conversion. Escaping is disabled so that literal
// '*' and '_' in mail text stay readable instead of becoming "\*" and "\_".
var converterOptions = md.Options{
	HeadingStyle:     "atx",
	HorizontalRule:   "---",
	BulletListMarker: "-",
	CodeBlockStyle:   "fenced",
	EscapeMode:       "disabled",
}

// ToMarkdown converts HTML into Markdown with ATX headings.
// A conversion failure yields the input unchanged.
func ToMarkdown(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	opts := converterOptions
	out, err := md.NewConverter("", true, &opts).ConvertString(html)
	if err != nil {
		return strings.TrimSpace(html)
	}

	return strings.TrimSpace(out)
}

var textOptions = html2text.Options{TextOnly: true}

// ToText flattens HTML into plain text.
func ToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	out, err := html2text.FromString(html, textOptions)
	if err != nil {
		return strings.TrimSpace(html)
	}

	return strings.TrimSpace(out)
}
