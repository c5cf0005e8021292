// Package sanitizer strips email HTML down to the content elements
// that survive conversion to Markdown.
package sanitizer

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// conditionalComment matches Outlook's <!--[if mso]> blocks, which bluemonday
// would otherwise unwrap into visible text when they are malformed.
var conditionalComment = regexp.MustCompile(`(?is)<!--\[if[^\]]*\]>.*?<!\[endif\]-->`)

// Policy returns the shared bluemonday policy.
//
// Kept: text structure (paragraphs, headings, lists, tables, quotes, code,
// inline emphasis) and images. Dropped with their content: script, style,
// head, embedded objects, frames and form controls. Dropped but with text
// kept: anchors, html/body wrappers, forms, span, font, div and any tag not
// allowed below. Attributes are dropped except image source/alt/title and
// table cell spans, so inline styles and on* handlers never pass.
func Policy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()

		p.AllowElements(
			"p", "br", "hr",
			"h1", "h2", "h3", "h4", "h5", "h6",
			"strong", "b", "em", "i", "u", "s", "strike", "del", "ins", "sub", "sup", "small",
			"blockquote", "pre", "code", "kbd", "samp",
			"ul", "ol", "li", "dl", "dt", "dd",
			"table", "caption", "thead", "tbody", "tfoot", "tr", "th", "td",
		)

		p.AllowImages()
		p.AllowAttrs("title").OnElements("img")
		p.AllowURLSchemes("http", "https", "cid")
		p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")

		// Void elements (input, embed, frame) must not be listed here: without
		// an end tag they would suppress the rest of the document.
		p.SkipElementsContent(
			"script", "style", "noscript", "head", "title", "template",
			"object", "applet", "iframe", "frameset", "noframes",
			"button", "select", "textarea",
			"svg", "math",
		)

		policy = p
	})

	return policy
}

// Sanitize cleans dirty HTML. It never fails: malformed markup is
// tokenized best-effort and whatever text can be recovered is returned.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}

	html = conditionalComment.ReplaceAllString(html, "")
	return Policy().Sanitize(html)
}
