package mailer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/kvstore"
	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/logger"
)

// Retriever turns one source file into a Message.
type Retriever interface {
	GetMail(ctx context.Context, path string) (*Message, error)
}

// RetrieverResolver picks the Retriever for a path, or fails with
// *UnsupportedFormatError.
type RetrieverResolver interface {
	Resolve(path string) (Retriever, error)
}

// Forwarder persists a Message, returning the path of the written document.
type Forwarder interface {
	Forward(ctx context.Context, msg *Message, relPath string) (string, error)
}

// Status of a single processed file.
type Status string

const (
	StatusSaved       Status = "saved"
	StatusUnsupported Status = "unsupported"
	StatusFailed      Status = "failed"
)

// Outcome records what happened to one input file.
type Outcome struct {
	Status Status
	Output string
	Err    error
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	RunID       string
	Saved       int
	Unsupported int
	Failed      int
	Outcomes    *kvstore.KVStore[string, Outcome]
}

// Total is the number of files the run looked at.
func (s Summary) Total() int {
	return s.Saved + s.Unsupported + s.Failed
}

type TaskRunner struct {
	recursive  bool
	retrievers RetrieverResolver
	forwarder  Forwarder
	sink       logger.Sink
}

func NewRunner(
	recursive bool,
	retrievers RetrieverResolver,
	forwarder Forwarder,
	sink logger.Sink,
) TaskRunner {
	if sink == nil {
		sink = logger.Discard
	}

	return TaskRunner{
		recursive:  recursive,
		retrievers: retrievers,
		forwarder:  forwarder,
		sink:       sink,
	}
}

// Run extracts every message found under input and forwards it.
//
// Files are processed one at a time. Any per-file failure (unknown format,
// parse error, write error) is reported through the sink, recorded in the
// summary and does not stop the batch. The only fatal conditions are a
// failed discovery, an empty input and context cancellation between files.
func (r *TaskRunner) Run(ctx context.Context, input string) (Summary, error) {
	summary := Summary{
		RunID:    uuid.NewString(),
		Outcomes: kvstore.New[string, Outcome](),
	}
	ctx = logger.WithAttrs(ctx, slog.String("run_id", summary.RunID))

	files, err := DiscoverFiles(input, r.recursive)
	if err != nil {
		return summary, fmt.Errorf("discover files: %w", err)
	}
	if len(files) == 0 {
		return summary, fmt.Errorf("%w in %q", ErrNoInput, input)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcome := r.process(logger.WithAttrs(ctx, slog.String("file", path)), input, path)
		summary.Outcomes.Set(path, outcome)

		switch outcome.Status {
		case StatusSaved:
			summary.Saved++
		case StatusUnsupported:
			summary.Unsupported++
		default:
			summary.Failed++
		}
	}

	r.sink.Emit(ctx, logger.SeverityInfo, fmt.Sprintf(
		"Complete: %d saved, %d skipped, %d failed", summary.Saved, summary.Unsupported, summary.Failed,
	))

	return summary, nil
}

func (r *TaskRunner) process(ctx context.Context, root, path string) Outcome {
	r.sink.Emit(ctx, logger.SeverityInfo, fmt.Sprintf("Extracting: %s...", path))

	retriever, err := r.retrievers.Resolve(path)
	if err != nil {
		var unsupported *UnsupportedFormatError
		if errors.As(err, &unsupported) {
			r.sink.Emit(ctx, logger.SeverityWarn, fmt.Sprintf("Unknown format -> %s", filepath.Base(path)))
			return Outcome{Status: StatusUnsupported, Err: err}
		}

		r.sink.Emit(ctx, logger.SeverityError, fmt.Sprintf("resolve retriever: %s", err))
		return Outcome{Status: StatusFailed, Err: err}
	}

	msg, err := retriever.GetMail(ctx, path)
	if err != nil {
		r.sink.Emit(ctx, logger.SeverityError, fmt.Sprintf("Parse failed for %s: %s", path, err))
		return Outcome{Status: StatusFailed, Err: err}
	}

	output, err := r.forwarder.Forward(ctx, msg, relativeDir(root, path))
	if err != nil {
		r.sink.Emit(ctx, logger.SeverityError, fmt.Sprintf("Write failed for %s: %s", path, err))
		return Outcome{Status: StatusFailed, Err: err}
	}

	return Outcome{Status: StatusSaved, Output: output}
}

// DiscoverFiles lists regular files under root in lexical order.
// A root that is itself a file is returned as the only entry.
// Without recursion only the immediate children of root are listed.
func DiscoverFiles(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", root, err)
	}

	return files, nil
}

// relativeDir returns the directory of path relative to root, or "" when
// path sits directly in root or root is the file itself.
func relativeDir(root, path string) string {
	if root == path {
		return ""
	}

	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return ""
	}
	return rel
}
