// Package apperr classifies failures surfaced by the commerce engine.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// GenericNetworkMessage is shown when the API is unreachable or answers
// without a readable message.
const GenericNetworkMessage = "Something went wrong. Please check your connection and try again."

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindNetwork
	KindConflict
	KindNotFound
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error carries a user-facing Message. Field is set for local validation
// failures, Status for failures reported by the API.
type Error struct {
	Kind    Kind
	Status  int
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Message: GenericNetworkMessage, Err: err}
}

// FromStatus maps a non-2xx API answer with a readable message to a kind.
func FromStatus(status int, message string) *Error {
	var kind Kind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusConflict:
		kind = KindConflict
	case status >= 500:
		kind = KindServer
	case status >= 400:
		kind = KindValidation
	default:
		kind = KindUnknown
	}
	return &Error{Kind: kind, Status: status, Message: message}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsUnauthorized reports an API rejection of the session token itself.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindAuth && e.Status == http.StatusUnauthorized
}

// UserMessage returns the text to show for err. Unclassified errors get the
// generic fallback.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return GenericNetworkMessage
}
