package retriever

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/TroyWilliams3687/email-to-markdown/internal/app/mailer"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/fsutil"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/logger"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/units"
)

// octetStream has no extension of its own in the mimetype tree.
const octetStream = "application/octet-stream"

// GuessExtension returns a file extension (with the dot) for a content
// type, or "" when none is known.
func GuessExtension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "":
		return ""
	case octetStream:
		return ".bin"
	}

	if m := mimetype.Lookup(mediaType); m != nil && m.Extension() != "" {
		return m.Extension()
	}

	exts, err := mime.ExtensionsByType(mediaType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}

	return ""
}

// AttachmentName derives the stored name of the attachment at index:
// the sanitized declared name, or attachment_<index><ext> guessed from
// contentType. It fails with *mailer.AttachmentNamingError when neither works.
func AttachmentName(index int, declared, contentType string, platform fsutil.Platform) (string, error) {
	if name := fsutil.SanitizeName(fsutil.BaseName(declared), platform); name != "" {
		return name, nil
	}

	ext := GuessExtension(contentType)
	if ext == "" {
		return "", &mailer.AttachmentNamingError{Index: index, MIMEType: contentType}
	}

	return fmt.Sprintf("attachment_%d%s", index, ext), nil
}

// collector accumulates attachments in declaration order, dropping the ones
// that cannot be named or exceed the size limit.
type collector struct {
	ctx         context.Context
	opts        Options
	attachments []mailer.Attachment
}

func newCollector(ctx context.Context, opts Options) *collector {
	return &collector{
		ctx:         ctx,
		opts:        opts,
		attachments: make([]mailer.Attachment, 0),
	}
}

func (c *collector) add(index int, declared, contentType string, data []byte) {
	name, err := AttachmentName(index, declared, contentType, c.opts.Platform)
	if err != nil {
		var namingErr *mailer.AttachmentNamingError
		if errors.As(err, &namingErr) {
			c.opts.sink().Emit(c.ctx, logger.SeverityWarn, fmt.Sprintf(
				"%s - Could not guess based on mimetype! Attachment not written.", contentType,
			))
			return
		}
		c.opts.sink().Emit(c.ctx, logger.SeverityWarn, fmt.Sprintf("attachment %d: %s", index, err))
		return
	}

	if limit := c.opts.MaxAttachmentSize; limit > 0 && int64(len(data)) > limit {
		c.opts.sink().Emit(c.ctx, logger.SeverityWarn, fmt.Sprintf(
			"Attachment %s is %s, over the %s limit. Attachment not written.",
			name, units.HumanSize(float64(len(data))), units.HumanSize(float64(limit)),
		))
		return
	}

	c.attachments = append(c.attachments, mailer.Attachment{
		Filename: name,
		MIMEType: contentType,
		Data:     data,
	})
}
