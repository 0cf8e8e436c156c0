package importer

import (
	"errors"
	"fmt"
)

// Kind classifies an import failure.
type Kind int

const (
	KindInput Kind = iota + 1
	KindFormat
	KindSize
	KindParse
	KindSchema
	KindValidation
	KindPersistence
	KindIO
)

var kindNames = map[Kind]string{
	KindInput:       "input",
	KindFormat:      "format",
	KindSize:        "size",
	KindParse:       "parse",
	KindSchema:      "schema",
	KindValidation:  "validation",
	KindPersistence: "persistence",
	KindIO:          "io",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsClientError reports whether the failure was caused by the uploaded content
// rather than by the server.
func (k Kind) IsClientError() bool {
	switch k {
	case KindPersistence, KindIO:
		return false
	default:
		return true
	}
}

// Sentinel errors, one per failure the pipeline can report.
var (
	ErrNoFileProvided         = errors.New("no file provided")
	ErrUnsupportedFormat      = errors.New("only .csv or .xlsx files are allowed")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrFileTooLarge           = errors.New("file too large")
	ErrIOFailure              = errors.New("could not store uploaded file")
	ErrCorruptFile            = errors.New("file could not be read as a table")
	ErrEmptyFile              = errors.New("file is empty")
	ErrUnreadableEncoding     = errors.New("file is not valid UTF-8 text")
	ErrProcessingTimeout      = errors.New("file took too long to process")
	ErrMissingEmailColumn     = errors.New("could not find an email column")
	ErrInvalidEmail           = errors.New("email is not valid")
	ErrPersistence            = errors.New("could not save attendance")
)

// Error is the typed failure returned by every pipeline stage.
type Error struct {
	Kind  Kind
	Stage Stage
	// Err is one of the package sentinels.
	Err error
	// Value is the offending raw input, when there is one.
	Value string
	// Row is the 1-based sheet row (header is row 1), or 0.
	Row   int
	Cause error
}

func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Value != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Value)
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("%s (row %d)", msg, e.Row)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func newError(kind Kind, sentinel error, cause error) *Error {
	return &Error{Kind: kind, Err: sentinel, Cause: cause}
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}
