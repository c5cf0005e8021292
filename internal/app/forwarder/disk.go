package forwarder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/TroyWilliams3687/email-to-markdown/internal/app/mailer"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/fsutil"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/logger"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/units"
)

// NoSubject names the folder of messages without a usable subject.
const NoSubject = "no subject"

// maxFolderNameBytes leaves room for the ".md" suffix and a " (n)" variant.
const maxFolderNameBytes = 240

type DiskOptions struct {
	Platform         fsutil.Platform
	AbsentValue      string
	FullHeader       bool
	UniqueFolders    bool
	FolderRetryLimit int
	FileRetryLimit   int
}

type diskForwarder struct {
	root     string
	renderer *Renderer
	opts     DiskOptions
	sink     logger.Sink
}

// NewDiskForwarder writes every message below root as a Markdown file
// plus an attachments folder.
func NewDiskForwarder(root string, renderer *Renderer, opts DiskOptions, sink logger.Sink) *diskForwarder {
	if renderer == nil {
		renderer = NewRenderer()
	}
	if sink == nil {
		sink = logger.Discard
	}

	return &diskForwarder{
		root:     root,
		renderer: renderer,
		opts:     opts,
		sink:     sink,
	}
}

// FolderName derives the output folder name from a subject.
func FolderName(subject string, platform fsutil.Platform) string {
	name := fsutil.SanitizeName(strings.ToLower(subject), platform)
	for len(name) > maxFolderNameBytes {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}

	name = strings.TrimRight(name, " .")
	if name == "" {
		return NoSubject
	}
	return name
}

// Forward writes msg into root/relPath/<folder>/ and returns the path of the
// Markdown file. Existing files are never overwritten.
func (f *diskForwarder) Forward(ctx context.Context, msg *mailer.Message, relPath string) (string, error) {
	name := FolderName(msg.Header.SubjectText(), f.opts.Platform)

	folder, err := f.messageFolder(filepath.Join(f.root, relPath), name)
	if err != nil {
		return "", err
	}

	mdPath, err := f.claimFile(filepath.Join(folder, filepath.Base(folder)+".md"))
	if err != nil {
		return "", err
	}

	names, written, err := f.writeAttachments(ctx, folder, msg.Attachments)
	if err != nil {
		f.discard(folder, mdPath, written)
		return "", err
	}

	text, err := f.renderer.Render(NewDocument(msg, names, f.opts.AbsentValue, f.opts.FullHeader))
	if err != nil {
		f.discard(folder, mdPath, written)
		return "", fmt.Errorf("render %q: %w", mdPath, err)
	}

	if err = os.WriteFile(mdPath, []byte(text), 0o644); err != nil {
		f.discard(folder, mdPath, written)
		return "", &mailer.IOError{Op: "write", Path: mdPath, Err: err}
	}

	f.sink.Emit(ctx, logger.SeverityInfo, fmt.Sprintf("Saved Email: %s", mdPath))

	return mdPath, nil
}

func (f *diskForwarder) messageFolder(parent, name string) (string, error) {
	candidate := filepath.Join(parent, name)

	if !f.opts.UniqueFolders {
		if err := fsutil.EnsureDir(candidate); err != nil {
			return "", &mailer.IOError{Op: "mkdir", Path: candidate, Err: err}
		}
		return candidate, nil
	}

	folder, err := fsutil.ClaimDir(candidate, f.opts.FolderRetryLimit)
	if err != nil {
		return "", claimError(candidate, "mkdir", err)
	}
	return folder, nil
}

func (f *diskForwarder) claimFile(candidate string) (string, error) {
	path, err := fsutil.ClaimFile(candidate, f.opts.FileRetryLimit)
	if err != nil {
		return "", claimError(candidate, "create", err)
	}
	return path, nil
}

// writeAttachments stores every non-empty attachment and returns the names
// to list in the document along with the paths it wrote. Empty attachments
// are listed under their own name but never written. The written paths are
// returned even on failure so the caller can discard them.
func (f *diskForwarder) writeAttachments(ctx context.Context, folder string, attachments []mailer.Attachment) ([]string, []string, error) {
	names := make([]string, 0, len(attachments))
	written := make([]string, 0, len(attachments))
	dir := filepath.Join(folder, AttachmentsDir)
	dirReady := false

	for _, a := range attachments {
		if len(a.Data) == 0 {
			f.sink.Emit(ctx, logger.SeverityWarn, fmt.Sprintf("Attachment %s is empty. Attachment not written.", a.Filename))
			names = append(names, a.Filename)
			continue
		}

		if !dirReady {
			if err := fsutil.EnsureDir(dir); err != nil {
				return nil, written, &mailer.IOError{Op: "mkdir", Path: dir, Err: err}
			}
			dirReady = true
		}

		path, err := f.claimFile(filepath.Join(dir, a.Filename))
		if err != nil {
			return nil, written, err
		}
		written = append(written, path)

		if err = os.WriteFile(path, a.Data, 0o644); err != nil {
			return nil, written, &mailer.IOError{Op: "write", Path: path, Err: err}
		}

		f.sink.Emit(ctx, logger.SeverityInfo, fmt.Sprintf(
			"Saved Attachment: %s (%s)", path, units.HumanSize(float64(len(a.Data))),
		))
		names = append(names, filepath.Base(path))
	}

	return names, written, nil
}

// discard removes what a failed Forward left behind. Directories are only
// removed when empty, and the message folder only when this call claimed it.
func (f *diskForwarder) discard(folder, mdPath string, written []string) {
	for _, path := range written {
		_ = os.Remove(path)
	}
	_ = os.Remove(filepath.Join(folder, AttachmentsDir))
	_ = os.Remove(mdPath)
	if f.opts.UniqueFolders {
		_ = os.Remove(folder)
	}
}

func claimError(path, op string, err error) error {
	if errors.Is(err, fsutil.ErrRetriesExhausted) {
		return &mailer.CollisionExhaustedError{Path: path, Err: err}
	}
	return &mailer.IOError{Op: op, Path: path, Err: err}
}
