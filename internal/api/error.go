package api

import (
	"errors"
	"fmt"
)

var (
	// -- Input --
	ErrValidation = errors.New("validation error")

	// -- Identity --
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidCode        = errors.New("invalid or expired code")

	// -- Resource State --
	ErrNotFound   = errors.New("not found")
	ErrOutOfStock = errors.New("out of stock")

	// -- Transport & Backend --
	ErrNetwork = errors.New("network error")
	ErrServer  = errors.New("server error")
	ErrUnknown = errors.New("unexpected error")
)

const (
	CodeOutOfStock = "OUT_OF_STOCK"
)

// Error is a backend or transport failure converted to one of the kinds above.
type Error struct {
	Kind    error
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the taxonomy kind of err, ErrUnknown when err is not classified.
func KindOf(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	for _, k := range []error{
		ErrValidation, ErrNotAuthenticated, ErrInvalidCredentials, ErrInvalidCode,
		ErrNotFound, ErrOutOfStock, ErrNetwork, ErrServer,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrUnknown
}

// Reclassify rewrites err to kind when its current kind is one of from.
// The backend message is kept.
func Reclassify(err error, kind error, from ...error) error {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err
	}
	for _, f := range from {
		if apiErr.Kind == f {
			return &Error{
				Kind:    kind,
				Status:  apiErr.Status,
				Code:    apiErr.Code,
				Message: apiErr.Message,
				Err:     apiErr.Err,
			}
		}
	}
	return err
}

var defaultMessages = map[error]string{
	ErrValidation:         "Please check the highlighted fields and try again.",
	ErrNotAuthenticated:   "Please log in to continue.",
	ErrInvalidCredentials: "Invalid email or password.",
	ErrInvalidCode:        "Invalid code. Please try again.",
	ErrNotFound:           "The requested item could not be found.",
	ErrOutOfStock:         "Sorry, this item does not have enough stock.",
	ErrNetwork:            "Network problem. Check your connection and retry.",
	ErrServer:             "The store is having trouble right now. Please retry shortly.",
}

const timeoutMessage = "The store is taking too long to answer. Please retry."

// kinds whose backend message is safe to show as-is
var displayable = map[error]bool{
	ErrValidation:         true,
	ErrInvalidCredentials: true,
	ErrInvalidCode:        true,
	ErrNotFound:           true,
	ErrOutOfStock:         true,
}

// UserMessage maps any error to text fit for a toast. Raw payloads never leak.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	kind := KindOf(err)
	if kind == ErrNetwork && IsTimeout(err) {
		return timeoutMessage
	}

	var apiErr *Error
	if errors.As(err, &apiErr) && displayable[kind] && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg, ok := defaultMessages[kind]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}
