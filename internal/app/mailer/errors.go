package mailer

import (
	"errors"
	"fmt"
)

// ErrNoInput is returned by TaskRunner.Run when discovery finds nothing to process.
var ErrNoInput = errors.New("no input files found")

// ParseError reports a source file that is unreadable or structurally
// invalid for its format.
type ParseError struct {
	Path   string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Format, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports a file whose extension has no retriever.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q for %q", e.Ext, e.Path)
}

// AttachmentNamingError reports an attachment without a declared name
// whose content type maps to no known extension.
type AttachmentNamingError struct {
	Index    int
	MIMEType string
}

func (e *AttachmentNamingError) Error() string {
	return fmt.Sprintf("attachment %d: no filename and no extension known for %q", e.Index, e.MIMEType)
}

// CollisionExhaustedError reports that every name variant for Path was taken.
type CollisionExhaustedError struct {
	Path string
	Err  error
}

func (e *CollisionExhaustedError) Error() string {
	return fmt.Sprintf("name collision for %q: %v", e.Path, e.Err)
}

func (e *CollisionExhaustedError) Unwrap() error { return e.Err }

// IOError reports a filesystem failure while writing output.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
