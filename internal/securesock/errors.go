package securesock

import "errors"

var (
	ErrNotClient = errors.New("securesock: context is not a client context")
	ErrNotServer = errors.New("securesock: context is not a server context")
)

// Error reports a failed secure socket operation. Op is the operation that
// failed ("connect", "accept", "read", "write", "close"), Err is the
// underlying TLS or transport error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "securesock: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
