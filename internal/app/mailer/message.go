package mailer

import (
	"sort"
	"strings"
)

// CanonicalHeaders lists the envelope headers mapped onto Header fields,
// in the order they are rendered.
var CanonicalHeaders = []string{
	"Date",
	"Subject",
	"To",
	"From",
	"Reply-To",
	"Sender",
	"Cc",
	"Bcc",
}

// IsCanonicalHeader reports whether name is one of CanonicalHeaders, ignoring case.
func IsCanonicalHeader(name string) bool {
	for _, h := range CanonicalHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// Header is the envelope of a message. A nil field means the source had no
// such header, which is rendered differently from a present empty value.
type Header struct {
	Date    *string
	Subject *string
	To      *string
	From    *string
	ReplyTo *string
	Sender  *string
	CC      *string
	BCC     *string

	// Others holds every header not listed in CanonicalHeaders.
	Others map[string]string
}

// NewHeader returns a Header with its own empty Others map.
func NewHeader() Header {
	return Header{Others: make(map[string]string)}
}

// Set assigns a canonical header by name. Unknown names are stored in Others.
func (h *Header) Set(name, value string) {
	v := value
	switch strings.ToLower(name) {
	case "date":
		h.Date = &v
	case "subject":
		h.Subject = &v
	case "to":
		h.To = &v
	case "from":
		h.From = &v
	case "reply-to":
		h.ReplyTo = &v
	case "sender":
		h.Sender = &v
	case "cc":
		h.CC = &v
	case "bcc":
		h.BCC = &v
	default:
		if h.Others == nil {
			h.Others = make(map[string]string)
		}
		h.Others[name] = value
	}
}

// Get returns the canonical header named name, or nil when it is absent
// or name is not canonical.
func (h Header) Get(name string) *string {
	switch strings.ToLower(name) {
	case "date":
		return h.Date
	case "subject":
		return h.Subject
	case "to":
		return h.To
	case "from":
		return h.From
	case "reply-to":
		return h.ReplyTo
	case "sender":
		return h.Sender
	case "cc":
		return h.CC
	case "bcc":
		return h.BCC
	}
	return nil
}

// SubjectText returns the subject, or an empty string when it is absent.
func (h Header) SubjectText() string {
	if h.Subject == nil {
		return ""
	}
	return *h.Subject
}

// HeaderField is a single name/value pair.
type HeaderField struct {
	Name  string
	Value string
}

// SortedOthers returns Others ordered by header name.
func (h Header) SortedOthers() []HeaderField {
	fields := make([]HeaderField, 0, len(h.Others))
	for k, v := range h.Others {
		fields = append(fields, HeaderField{Name: strings.TrimSpace(k), Value: strings.TrimSpace(v)})
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

// Attachment is a single extracted payload. Filename is always a bare
// file name without directory components.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Message is the format independent representation of an email, produced
// by a retriever and consumed by a forwarder.
type Message struct {
	Header      Header
	Body        string
	Attachments []Attachment
}

// NewMessage returns an empty message with a fresh header and attachment list.
func NewMessage() *Message {
	return &Message{
		Header:      NewHeader(),
		Attachments: make([]Attachment, 0),
	}
}
