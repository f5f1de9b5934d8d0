package selection

import (
	"errors"
	"fmt"
)

// Kind categorizes selection run errors.
type Kind string

const (
	// KindConfiguration indicates missing or invalid request fields.
	// Raised before any remote call.
	KindConfiguration Kind = "CONFIGURATION"

	// KindValidation indicates the trial query was rejected.
	KindValidation Kind = "VALIDATION"

	// KindExecution indicates the selection procedure or an existence check failed.
	KindExecution Kind = "EXECUTION"

	// KindEmptyResult indicates the selection ran but produced no rows.
	// This is a reportable outcome, not a system failure.
	KindEmptyResult Kind = "EMPTY_RESULT"

	// KindPlanning indicates the output path or format could not be planned.
	KindPlanning Kind = "PLANNING"

	// KindCancelled indicates the caller declined an overwrite or chose no path.
	KindCancelled Kind = "CANCELLED"

	// KindExport indicates one or more artifacts could not be written.
	KindExport Kind = "EXPORT"

	// KindCleanup indicates the clear procedure failed.
	KindCleanup Kind = "CLEANUP"
)

// UserMessage returns the message class shown to the analyst.
func (k Kind) UserMessage() string {
	switch k {
	case KindConfiguration:
		return "selection is incomplete or invalid"
	case KindValidation:
		return "query invalid"
	case KindExecution:
		return "selection failed on the server"
	case KindEmptyResult:
		return "no output generated"
	case KindPlanning:
		return "output location invalid"
	case KindCancelled:
		return "overwrite declined"
	case KindExport:
		return "export failed"
	case KindCleanup:
		return "temporary tables could not be cleared"
	default:
		return "selection failed"
	}
}

// Error is returned by every selection stage.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed (e.g. "verify", "call select").
	Op string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf creates an Error of the given kind with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain.
// Returns "" if err carries no selection error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries a selection error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
