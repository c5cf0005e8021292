package retriever

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/TroyWilliams3687/email-to-markdown/internal/app/mailer"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/markdown"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/sanitizer"
)

type emlRetriever struct {
	opts   Options
	policy Policy
}

// NewEMLRetriever returns a retriever for RFC 822 (.eml) files.
// Attachments are taken from the immediate parts of the root only.
func NewEMLRetriever(opts Options) *emlRetriever {
	return &emlRetriever{
		opts:   opts,
		policy: Policy{FlattenNested: false},
	}
}

// WithPolicy overrides the traversal policy.
func (r *emlRetriever) WithPolicy(p Policy) *emlRetriever {
	r.policy = p
	return r
}

func (r *emlRetriever) GetMail(ctx context.Context, path string) (*mailer.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &mailer.IOError{Op: "open", Path: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()

	msg, err := parseEML(ctx, f, r.opts, r.policy)
	if err != nil {
		return nil, &mailer.ParseError{Path: path, Format: "eml", Err: err}
	}

	return msg, nil
}

// ParseEML parses an RFC 822 message using the default .eml policy.
func ParseEML(ctx context.Context, r io.Reader, opts Options) (*mailer.Message, error) {
	return parseEML(ctx, r, opts, Policy{})
}

func parseEML(ctx context.Context, r io.Reader, opts Options, policy Policy) (*mailer.Message, error) {
	entity, err := message.Read(r)
	if err != nil && !isCharsetProblem(err) {
		return nil, fmt.Errorf("read message: %w", err)
	}

	root, err := readPart(entity)
	if err != nil {
		return nil, err
	}

	msg := mailer.NewMessage()
	msg.Header = emlHeader(entity.Header)

	body := selectBody(root)
	if body != nil {
		msg.Body = renderBody(body)
	}

	c := newCollector(ctx, opts)
	if root.multipart {
		collectParts(c, root, body, policy)
	}
	msg.Attachments = c.attachments

	return msg, nil
}

// isCharsetProblem reports errors go-message returns alongside a usable
// entity whose body simply was not decoded.
func isCharsetProblem(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

// mimePart is a fully read MIME entity. A truncated part ended before its
// closing boundary and holds only the bytes that were present.
type mimePart struct {
	header    message.Header
	mediaType string
	multipart bool
	truncated bool
	body      []byte
	parts     []*mimePart
}

func readPart(e *message.Entity) (*mimePart, error) {
	p := &mimePart{header: e.Header}

	mediaType, _, err := e.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}
	p.mediaType = strings.ToLower(mediaType)

	if mr := e.MultipartReader(); mr != nil {
		p.multipart = true
		for {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if err != nil && p.truncated {
				// Nothing follows a part that ran into the end of input.
				break
			}
			if err != nil && (child == nil || !isCharsetProblem(err)) {
				return nil, fmt.Errorf("read part: %w", err)
			}

			part, err := readPart(child)
			if err != nil {
				return nil, err
			}
			p.parts = append(p.parts, part)
			p.truncated = p.truncated || part.truncated
		}
		return p, nil
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(e.Body); err != nil {
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read %s body: %w", p.mediaType, err)
		}
		p.truncated = true
	}
	p.body = buf.Bytes()

	return p, nil
}

func (p *mimePart) isAttachment() bool {
	disposition, _, err := p.header.ContentDisposition()
	return err == nil && strings.EqualFold(disposition, "attachment")
}

// emlHeader splits the top-level header into canonical fields and Others.
// The first occurrence of a canonical header wins. Repeated non-canonical
// headers are joined with ", " in order of appearance.
func emlHeader(h message.Header) mailer.Header {
	header := mailer.NewHeader()

	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		value = strings.TrimSpace(value)

		if mailer.IsCanonicalHeader(fields.Key()) {
			if header.Get(fields.Key()) == nil {
				header.Set(fields.Key(), value)
			}
			continue
		}

		name := rawKey(fields)
		if prev, ok := header.Others[name]; ok {
			header.Others[name] = prev + ", " + value
			continue
		}
		header.Others[name] = value
	}

	return header
}

// rawKey returns the header name as written in the source.
func rawKey(fields message.HeaderFields) string {
	raw, err := fields.Raw()
	if err == nil {
		if k, _, ok := bytes.Cut(raw, []byte(":")); ok {
			if name := strings.TrimSpace(string(k)); name != "" {
				return name
			}
		}
	}
	return fields.Key()
}

// selectBody returns the first non-attachment text/plain part in depth
// first order, falling back to the first text/html part.
func selectBody(root *mimePart) *mimePart {
	var plain, html *mimePart

	var walk func(p *mimePart)
	walk = func(p *mimePart) {
		if p.multipart {
			for _, child := range p.parts {
				walk(child)
			}
			return
		}
		if p.isAttachment() {
			return
		}
		switch p.mediaType {
		case "text/plain":
			if plain == nil {
				plain = p
			}
		case "text/html":
			if html == nil {
				html = p
			}
		}
	}
	walk(root)

	if plain != nil {
		return plain
	}
	return html
}

func renderBody(p *mimePart) string {
	if p.mediaType == "text/html" {
		return markdown.ToMarkdown(sanitizer.Sanitize(string(p.body)))
	}
	return strings.TrimSpace(string(p.body))
}

// collectParts walks the immediate parts of container. The part chosen as
// body is skipped, nested multiparts are descended into only when the
// policy flattens them.
func collectParts(c *collector, container, body *mimePart, policy Policy) {
	for i, part := range container.parts {
		if part == body {
			continue
		}
		if part.multipart {
			if policy.FlattenNested {
				collectParts(c, part, body, policy)
			}
			continue
		}

		ah := mail.AttachmentHeader{Header: part.header}
		declared, _ := ah.Filename()

		c.add(i, declared, part.mediaType, part.body)
	}
}
