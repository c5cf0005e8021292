package retriever

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/TroyWilliams3687/email-to-markdown/internal/app/mailer"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/fsutil"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/logger"
)

// HTMLMode selects what happens to an HTML-only body of a .msg file.
type HTMLMode string

const (
	// HTMLPassthrough keeps the HTML as-is in the Markdown document.
	HTMLPassthrough HTMLMode = "passthrough"
	// HTMLMarkdown sanitizes the HTML and converts it to Markdown.
	HTMLMarkdown HTMLMode = "markdown"
	// HTMLText flattens the HTML to plain text.
	HTMLText HTMLMode = "text"
)

// ParseHTMLMode validates a mode name read from configuration.
func ParseHTMLMode(s string) (HTMLMode, error) {
	switch m := HTMLMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return HTMLPassthrough, nil
	case HTMLPassthrough, HTMLMarkdown, HTMLText:
		return m, nil
	default:
		return "", fmt.Errorf("unknown html body mode %q", s)
	}
}

// Options shared by all retrievers.
type Options struct {
	// Platform is used to sanitize declared attachment names.
	Platform fsutil.Platform
	// MaxAttachmentSize drops larger attachments; zero means unlimited.
	MaxAttachmentSize int64
	// HTMLMode applies to .msg files whose only body is HTML.
	HTMLMode HTMLMode
	// Sink receives diagnostics about dropped attachments.
	Sink logger.Sink
}

func (o Options) sink() logger.Sink {
	if o.Sink == nil {
		return logger.Discard
	}
	return o.Sink
}

// Policy holds per-format traversal rules.
type Policy struct {
	// FlattenNested pulls attachments out of nested containers (embedded
	// messages, nested multiparts) into the parent attachment list.
	FlattenNested bool
}

// RetrieverFunc adapts a function to mailer.Retriever.
type RetrieverFunc func(context.Context, string) (*mailer.Message, error)

func (f RetrieverFunc) GetMail(ctx context.Context, path string) (*mailer.Message, error) {
	return f(ctx, path)
}

// Registry dispatches files to retrievers by case-insensitive extension.
type Registry struct {
	byExt map[string]mailer.Retriever
}

func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]mailer.Retriever)}
}

// NewDefaultRegistry registers the .eml and .msg retrievers.
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry()
	r.Register(".eml", NewEMLRetriever(opts))
	r.Register(".msg", NewMSGRetriever(opts))
	return r
}

// Register binds ext (with or without the leading dot) to retriever.
func (r *Registry) Register(ext string, retriever mailer.Retriever) {
	r.byExt[normalizeExt(ext)] = retriever
}

// Resolve returns the retriever for path or *mailer.UnsupportedFormatError.
func (r *Registry) Resolve(path string) (mailer.Retriever, error) {
	ext := normalizeExt(filepath.Ext(path))
	if retriever, ok := r.byExt[ext]; ok && ext != "" {
		return retriever, nil
	}
	return nil, &mailer.UnsupportedFormatError{Path: path, Ext: ext}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
