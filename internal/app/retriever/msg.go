package retriever

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"

	"github.com/TroyWilliams3687/email-to-markdown/internal/app/mailer"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/logger"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/markdown"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/sanitizer"
)

const (
	attachStoragePrefix = "__attach_version1.0_#"
	attachEmbeddedMsg   = 5
)

type msgRetriever struct {
	opts   Options
	policy Policy
}

// NewMSGRetriever returns a retriever for Outlook (.msg) files. Attachments
// of embedded messages are flattened into the parent list.
func NewMSGRetriever(opts Options) *msgRetriever {
	return &msgRetriever{
		opts:   opts,
		policy: Policy{FlattenNested: true},
	}
}

// WithPolicy overrides the traversal policy.
func (r *msgRetriever) WithPolicy(p Policy) *msgRetriever {
	r.policy = p
	return r
}

func (r *msgRetriever) GetMail(ctx context.Context, path string) (*mailer.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &mailer.IOError{Op: "open", Path: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()

	root, err := readCompoundFile(f)
	if err != nil {
		return nil, &mailer.ParseError{Path: path, Format: "msg", Err: err}
	}

	msg, err := parseMSG(ctx, root, r.opts, r.policy)
	if err != nil {
		return nil, &mailer.ParseError{Path: path, Format: "msg", Err: err}
	}

	return msg, nil
}

// ParseMSG parses an Outlook message from a compound file.
func ParseMSG(ctx context.Context, r io.ReaderAt, opts Options) (*mailer.Message, error) {
	root, err := readCompoundFile(r)
	if err != nil {
		return nil, err
	}
	return parseMSG(ctx, root, opts, Policy{FlattenNested: true})
}

func parseMSG(ctx context.Context, root *storage, opts Options, policy Policy) (*mailer.Message, error) {
	if !hasMessageProperties(root) {
		return nil, fmt.Errorf("compound file holds no message properties")
	}

	msg := mailer.NewMessage()
	msg.Header = msgHeader(root, rootPropsHeader)
	msg.Body = msgBody(root, opts.HTMLMode)

	c := newCollector(ctx, opts)
	collectMSGAttachments(c, root, policy)
	msg.Attachments = c.attachments

	return msg, nil
}

func hasMessageProperties(s *storage) bool {
	if _, ok := s.streams[propertiesStream]; ok {
		return true
	}
	for name := range s.streams {
		if strings.HasPrefix(name, "__substg1.0_") {
			return true
		}
	}
	return false
}

// transportHeader parses the raw internet headers Outlook keeps for
// received mail. It is empty for drafts and locally created items.
func transportHeader(s *storage) message.Header {
	raw, ok := s.stringProp(propTransportHeaders)
	if !ok || strings.TrimSpace(raw) == "" {
		return message.Header{}
	}

	h, err := textproto.ReadHeader(bufio.NewReader(strings.NewReader(raw + "\r\n\r\n")))
	if err != nil {
		return message.Header{}
	}
	return message.Header{Header: h}
}

func msgHeader(s *storage, headerSize int) mailer.Header {
	header := mailer.NewHeader()
	transport := transportHeader(s)

	fromTransport := func(key string) (string, bool) {
		if !transport.Has(key) {
			return "", false
		}
		v, err := transport.Text(key)
		if err != nil {
			v = transport.Get(key)
		}
		return strings.TrimSpace(v), true
	}
	setFirst := func(name string, sources ...func() (string, bool)) {
		for _, src := range sources {
			if v, ok := src(); ok {
				header.Set(name, v)
				return
			}
		}
	}
	prop := func(id uint16) func() (string, bool) {
		return func() (string, bool) { return s.stringProp(id) }
	}
	field := func(key string) func() (string, bool) {
		return func() (string, bool) { return fromTransport(key) }
	}
	timestamp := func(id uint16) func() (string, bool) {
		return func() (string, bool) {
			t, ok := s.timeProp(headerSize, id)
			if !ok {
				return "", false
			}
			return t.Format(time.RFC1123Z), true
		}
	}

	setFirst("Date", field("Date"), timestamp(propClientSubmitTime), timestamp(propDeliveryTime))
	setFirst("Subject", prop(propSubject), field("Subject"))
	setFirst("To", prop(propDisplayTo), field("To"))
	setFirst("From", field("From"), func() (string, bool) { return sender(s) })
	setFirst("Reply-To", field("Reply-To"), prop(propReplyRecipientNames))
	setFirst("Sender", field("Sender"), field("From"), func() (string, bool) { return sender(s) })
	setFirst("Cc", prop(propDisplayCC), field("Cc"))
	setFirst("Bcc", prop(propDisplayBCC), field("Bcc"))

	return header
}

func sender(s *storage) (string, bool) {
	name, hasName := s.stringProp(propSenderName)
	email, hasEmail := s.stringProp(propSenderEmail)
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)

	switch {
	case hasName && hasEmail && name != "" && email != "" && name != email:
		return fmt.Sprintf("%s <%s>", name, email), true
	case hasEmail && email != "":
		return email, true
	case hasName:
		return name, true
	default:
		return "", false
	}
}

func msgBody(s *storage, mode HTMLMode) string {
	if body, ok := s.stringProp(propBody); ok && strings.TrimSpace(body) != "" {
		return strings.TrimSpace(body)
	}

	html, ok := s.stringProp(propBodyHTML)
	if !ok {
		raw, found := s.binaryProp(propBodyHTML)
		if !found {
			return ""
		}
		html = decode8Bit(raw)
	}

	switch mode {
	case HTMLMarkdown:
		return markdown.ToMarkdown(sanitizer.Sanitize(html))
	case HTMLText:
		return markdown.ToText(sanitizer.Sanitize(html))
	default:
		return strings.TrimSpace(html)
	}
}

// collectMSGAttachments walks attachment storages in name order. Embedded
// messages contribute their own attachments, numbered within that message.
func collectMSGAttachments(c *collector, s *storage, policy Policy) {
	for i, a := range s.childrenWithPrefix(attachStoragePrefix) {
		method, _ := a.int32Prop(childPropsHeader, propAttachMethod)
		if nested, ok := a.objectProp(propAttachData); ok || method == attachEmbeddedMsg {
			if !policy.FlattenNested || nested == nil {
				c.opts.sink().Emit(c.ctx, logger.SeverityWarn, fmt.Sprintf(
					"Embedded message %s skipped. Attachment not written.", attachmentLabel(a),
				))
				continue
			}
			collectMSGAttachments(c, nested, policy)
			continue
		}

		declared, ok := a.stringProp(propAttachLongFilename)
		if !ok || strings.TrimSpace(declared) == "" {
			declared, _ = a.stringProp(propAttachFilename)
		}
		mimeType, _ := a.stringProp(propAttachMimeTag)
		data, _ := a.binaryProp(propAttachData)

		c.add(i, declared, strings.TrimSpace(mimeType), data)
	}
}

func attachmentLabel(a *storage) string {
	if name, ok := a.stringProp(propAttachLongFilename); ok && name != "" {
		return name
	}
	return a.name
}
