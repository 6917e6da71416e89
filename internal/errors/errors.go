// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindCorrupt          Kind = "CORRUPT"
	KindStorageIO        Kind = "STORAGE_IO"
	KindNothingToCommit  Kind = "NOTHING_TO_COMMIT"
	KindIndexCorruptLine Kind = "INDEX_CORRUPT_LINE"
	KindValidation       Kind = "VALIDATION"
)

// Error is the failure type returned by the store, index and catalog.
// Two errors match under errors.Is when their kinds are equal, so callers
// compare against the Err* sentinels below.
type Error struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"op,omitempty"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrCorrupt          = &Error{Kind: KindCorrupt}
	ErrStorageIO        = &Error{Kind: KindStorageIO}
	ErrNothingToCommit  = &Error{Kind: KindNothingToCommit}
	ErrIndexCorruptLine = &Error{Kind: KindIndexCorruptLine}
	ErrValidation       = &Error{Kind: KindValidation}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Corrupt(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindCorrupt, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func StorageIO(op string, err error) *Error {
	return &Error{Kind: KindStorageIO, Op: op, Message: "storage failure", Err: err}
}

func NothingToCommit(op string) *Error {
	return &Error{Kind: KindNothingToCommit, Op: op, Message: "nothing to commit"}
}

func IndexCorruptLine(line int, format string, args ...any) *Error {
	return &Error{
		Kind:    KindIndexCorruptLine,
		Op:      fmt.Sprintf("index line %d", line),
		Message: fmt.Sprintf(format, args...),
	}
}

func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}
