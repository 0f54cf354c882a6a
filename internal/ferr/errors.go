// Package ferr defines the classified error vocabulary (ERROR_* and
// DECODE_* codes) shared across the fard pipeline, mirroring the
// class+span+cause error shape used throughout the surrounding codebase.
package ferr

import "fmt"

// Class is a canonical uppercase error code, e.g. ERROR_DIV_ZERO or
// DECODE_BAD_JSON.
type Class string

const (
	// Decode / Value Core
	DecodeBadJSON   Class = "DECODE_BAD_JSON"
	DecodeNotObject Class = "DECODE_NOT_OBJECT"
	DecodeMissingT  Class = "DECODE_MISSING_T"
	DecodeUnknownT  Class = "DECODE_UNKNOWN_T"
	DecodeExtraKeys Class = "DECODE_EXTRA_KEYS"
	DecodeBadKeys   Class = "DECODE_BAD_KEYS"
	DecodeBadBool   Class = "DECODE_BAD_BOOL"
	DecodeBadInt    Class = "DECODE_BAD_INT"
	DecodeBadHex    Class = "DECODE_BAD_HEX"
	DecodeBadText   Class = "DECODE_BAD_TEXT"
	DecodeBadList   Class = "DECODE_BAD_LIST"
	DecodeBadRecord Class = "DECODE_BAD_RECORD"
	DecodeBadErr    Class = "DECODE_BAD_ERR"
	DecodeDupKey    Class = "DECODE_DUP_KEY"

	// Arithmetic
	ErrOverflow Class = "ERROR_OVERFLOW"
	ErrDivZero  Class = "ERROR_DIV_ZERO"

	// Value construction
	ErrDupKey Class = "ERROR_DUP_KEY"

	// Parse
	ErrParse Class = "ERROR_PARSE"

	// Eval
	ErrEval             Class = "ERROR_EVAL"
	ErrBadArg           Class = "ERROR_BADARG"
	ErrRuntime          Class = "ERROR_RUNTIME"
	ErrMatchNoArm       Class = "ERROR_MATCH_NO_ARM"
	ErrPatMismatch      Class = "ERROR_PAT_MISMATCH"
	QMarkExpectResult   Class = "QMARK_EXPECT_RESULT"
	QMarkPropagateErr   Class = "QMARK_PROPAGATE_ERR"

	// Effect
	ErrEffectNotAllowed Class = "ERROR_EFFECT_NOT_ALLOWED"
	ErrEffect           Class = "ERROR_EFFECT"

	// Bundle
	ErrBadBundle    Class = "ERROR_BAD_BUNDLE"
	ErrBadSource    Class = "ERROR_BAD_SOURCE"
	ErrMissingFact  Class = "ERROR_MISSING_FACT"

	// Lock / Registry
	ErrLock       Class = "ERROR_LOCK"
	LockMismatch  Class = "LOCK_MISMATCH"
	ErrRegistry   Class = "ERROR_REGISTRY"

	// Internal / CLI usage
	ErrUsage    Class = "ERROR_USAGE"
	ErrInternal Class = "ERROR_INTERNAL"
)

// ExitCode maps a Class to the process exit code a CLI should return when
// the error reaches the top level. Internal/IO failures exit 10; all other
// classified failures (bad input, decode failures, bundle defects) exit 2.
func (c Class) ExitCode() int {
	switch c {
	case ErrInternal:
		return 10
	default:
		return 2
	}
}

// Span locates a parse error within source bytes.
type Span struct {
	File      string
	ByteStart int
	ByteEnd   int
	Line      int
	Col       int
}

// Error is the classified error type threaded through every layer of the
// pipeline below the Value boundary.
type Error struct {
	Class   Class
	Span    *Span
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (%s:%d:%d)", e.Class, e.Message, e.Span.File, e.Span.Line, e.Span.Col)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a classified error with no cause.
func New(class Class, format string, args ...any) *Error {
	return &Error{Class: class, Message: fmt.Sprintf(format, args...)}
}

// WithSpan attaches a span to an existing error, returning a new copy.
func (e *Error) WithSpan(sp Span) *Error {
	cp := *e
	cp.Span = &sp
	return &cp
}

// Wrap constructs a classified error around an existing error.
func Wrap(class Class, cause error, format string, args ...any) *Error {
	return &Error{Class: class, Message: fmt.Sprintf(format, args...), Cause: cause}
}
