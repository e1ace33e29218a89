package codec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownFormat is returned for a format other than yaml or json.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrTooLarge is returned when an input exceeds the decoder's size limit.
	ErrTooLarge = errors.New("input exceeds maximum size")
)

// DecodeError describes a document that could not be decoded. Path is the
// field path inside the document (for example nodes[2].data.rules[0]); Line
// is set when the position is known.
type DecodeError struct {
	Source  string
	Path    string
	Line    int
	Message string
	Err     error
}

// Error returns the error message.
func (e *DecodeError) Error() string {
	var b strings.Builder
	if loc := e.Location(); loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Location returns source:line, or whichever part is known.
func (e *DecodeError) Location() string {
	switch {
	case e.Source != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d", e.Source, e.Line)
	case e.Source != "":
		return e.Source
	case e.Line > 0:
		return fmt.Sprintf("line %d", e.Line)
	}
	return ""
}
