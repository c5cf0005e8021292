package forwarder

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/TroyWilliams3687/email-to-markdown/internal/app/mailer"
)

const defaultTemplateContent = `
{{- range .Fields }}{{ .Name }}: {{ .Value }}
{{ end }}
{{- range .Others }}{{ .Name }}: {{ .Value }}
{{ end }}
---

{{ .Body }}

---

Attachments:

{{ range .Attachments }}- {{ attachmentPath . }}
{{ end }}`

// AttachmentsDir is the folder, relative to the message file, holding attachments.
const AttachmentsDir = "attachments"

var (
	defaultTemplateFuncs = template.FuncMap{
		"join":           strings.Join,
		"replace":        strings.Replace,
		"replaceAll":     strings.ReplaceAll,
		"upper":          strings.ToUpper,
		"lower":          strings.ToLower,
		"contains":       strings.Contains,
		"trim":           strings.Trim,
		"trimSpace":      strings.TrimSpace,
		"attachmentPath": attachmentPath,
		"quoteMarkdown":  quoteMarkdown,
	}
	defaultTemplateName = "default"
	defaultTemplate     = template.Must(
		template.
			New(defaultTemplateName).
			Funcs(defaultTemplateFuncs).
			Parse(defaultTemplateContent),
	)
)

// Document is the data handed to the template.
type Document struct {
	// Fields holds the canonical headers in display order, absent ones
	// already replaced by the absent value.
	Fields []mailer.HeaderField
	// Others holds the remaining headers sorted by name. It is empty
	// unless the full header was requested.
	Others []mailer.HeaderField
	// Header is the untouched header for custom templates.
	Header      mailer.Header
	Body        string
	Attachments []string
}

var fieldLabels = []struct {
	header string
	label  string
}{
	{"Date", "Date"},
	{"Subject", "Subject"},
	{"To", "To"},
	{"From", "From"},
	{"Reply-To", "Reply-To"},
	{"Sender", "Sender"},
	{"Cc", "CC"},
	{"Bcc", "BCC"},
}

// NewDocument prepares msg for rendering. attachments are the final
// attachment file names in order.
func NewDocument(msg *mailer.Message, attachments []string, absentValue string, fullHeader bool) Document {
	doc := Document{
		Fields:      make([]mailer.HeaderField, 0, len(fieldLabels)),
		Header:      msg.Header,
		Body:        msg.Body,
		Attachments: attachments,
	}

	for _, f := range fieldLabels {
		value := absentValue
		if v := msg.Header.Get(f.header); v != nil {
			value = *v
		}
		doc.Fields = append(doc.Fields, mailer.HeaderField{Name: f.label, Value: value})
	}

	if fullHeader {
		doc.Others = msg.Header.SortedOthers()
	}

	return doc
}

// Renderer turns a Document into Markdown text.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer returns a renderer for the default layout.
func NewRenderer() *Renderer {
	return &Renderer{tmpl: defaultTemplate}
}

// NewRendererFromString parses a custom text/template layout. The same
// functions as in the default layout are available.
func NewRendererFromString(name, content string) (*Renderer, error) {
	tmpl, err := template.
		New(name).
		Funcs(defaultTemplateFuncs).
		Parse(content)
	if err != nil {
		return nil, fmt.Errorf("custom template parsing: %w", err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

// NewRendererFromFile loads a custom layout from path.
func NewRendererFromFile(path string) (*Renderer, error) {
	//nolint:gosec
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	return NewRendererFromString(path, string(content))
}

// Render executes the template. The output always ends with a single newline.
func (r *Renderer) Render(doc Document) (string, error) {
	var buf bytes.Buffer

	if err := r.tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("template rendering: %w", err)
	}

	return strings.TrimRight(buf.String(), " \t\r\n") + "\n", nil
}

func attachmentPath(name string) string {
	return AttachmentsDir + "/" + name
}

// quoteMarkdown wraps provided text in markdown 'quote' block
// by prepending each line with '>' symbol.
func quoteMarkdown(s string) string {
	br := bytes.NewBufferString(s)
	bw := bytes.NewBuffer(make([]byte, 0, len(s)))

	for {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			break
		}

		_, _ = fmt.Fprintf(bw, ">%s", line)
	}

	return bw.String()
}
