package storageimpl

import (
	"fmt"

	"github.com/strusgo/strusengine/internal/errbuf"
)

// Error is the structured error returned by the storage client and its
// transactions: kind + message + optional cause, mirroring the shape of the
// teacher's VectorDBError but closed over spec.md §7's fixed Kind enum
// instead of the teacher's open-ended numeric ErrorCode.
type Error struct {
	Kind    errbuf.Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind errbuf.Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind errbuf.Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}
