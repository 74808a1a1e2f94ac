package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindUpstreamMedia
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUpstreamMedia:
		return "upstream_media"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// Error is the error type every lifecycle operation returns. ClientFault marks
// upstream media and persistence failures caused by the payload (4xx) rather
// than by the store itself (5xx).
type Error struct {
	Kind        Kind
	Field       string
	Message     string
	ClientFault bool
	Err         error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind only, so errors.Is(err, apperr.ErrNotFound) works for any
// not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrForbidden     = &Error{Kind: KindForbidden}
	ErrUpstreamMedia = &Error{Kind: KindUpstreamMedia}
	ErrPersistence   = &Error{Kind: KindPersistence}
)

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg, ClientFault: true}
}

func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id), ClientFault: true}
}

func Forbidden(msg string) *Error {
	if msg == "" {
		msg = "not authorized"
	}
	return &Error{Kind: KindForbidden, Message: msg, ClientFault: true}
}

// MediaPayload is a media error caused by the uploaded file (size, type).
func MediaPayload(msg string) *Error {
	return &Error{Kind: KindUpstreamMedia, Message: msg, ClientFault: true}
}

// MediaStore is a media error caused by the object store being unreachable or failing.
func MediaStore(msg string, err error) *Error {
	return &Error{Kind: KindUpstreamMedia, Message: msg, Err: err}
}

func Conflict(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, ClientFault: true, Err: err}
}

func Persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Status maps an error onto the HTTP status the API returns for it.
func Status(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstreamMedia:
		if e.ClientFault {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	case KindPersistence:
		if e.ClientFault {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message that is safe to hand back to API callers.
func PublicMessage(err error) string {
	e, ok := As(err)
	if !ok {
		return "internal server error"
	}
	switch {
	case e.Kind == KindValidation, e.Kind == KindNotFound, e.Kind == KindForbidden:
		return e.Message
	case e.ClientFault && e.Message != "":
		return e.Message
	case e.Kind == KindUpstreamMedia:
		return "media store unavailable"
	default:
		return "internal server error"
	}
}
