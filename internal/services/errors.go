package services

import "errors"

// Error kinds. Every error returned by this package satisfies errors.Is for
// exactly one of them.
var (
	ErrValidation = errors.New("validation error")
	ErrProcessing = errors.New("processing error")
	ErrStorage    = errors.New("storage error")
	ErrAuth       = errors.New("authentication error")
)

var (
	// ErrInvalidCredentials is returned by Login for both unknown users and
	// wrong passwords.
	ErrInvalidCredentials = &Error{Kind: ErrAuth, Msg: "incorrect username or password"}
	// ErrInvalidToken is returned by Verify for any token it cannot accept.
	ErrInvalidToken = &Error{Kind: ErrAuth, Msg: "could not validate credentials"}
)

// Error carries a kind, a client facing message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationError(msg string) error {
	return &Error{Kind: ErrValidation, Msg: msg}
}

func processingError(msg string, err error) error {
	return &Error{Kind: ErrProcessing, Msg: msg, Err: err}
}

func storageError(msg string, err error) error {
	return &Error{Kind: ErrStorage, Msg: msg, Err: err}
}
