package service

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kind classifies a domain error for the transport layer.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindPermission
	KindDelivery
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindDelivery:
		return "delivery"
	case KindUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Error is the only error type services hand to handlers on purpose.
// Anything else is an internal fault.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, &service.Error{Kind: service.KindConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func ValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: map[string]string{field: message}}
}

func ConflictError(field, message string) *Error {
	e := &Error{Kind: KindConflict, Message: message}
	if field != "" {
		e.Fields = map[string]string{field: message}
	}
	return e
}

func NotFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func PermissionError(message string) *Error {
	return &Error{Kind: KindPermission, Message: message}
}

func DeliveryError(message string) *Error {
	return &Error{Kind: KindDelivery, Message: message}
}

func UnauthenticatedError(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// KindOf returns the kind of a service error, or 0 for internal faults.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// fromValidation turns ozzo-validation output into a ValidationError.
// Internal validator failures pass through unchanged.
func fromValidation(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		var internal validation.InternalError
		if errors.As(err, &internal) {
			return err
		}
		return &Error{Kind: KindValidation, Message: err.Error()}
	}
	fields := make(map[string]string, len(errs))
	for field, fe := range errs {
		fields[field] = fe.Error()
	}
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}
