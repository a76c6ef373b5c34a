package apperr

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Kind: закрытый набор видов ошибок, которые пересекают границы компонентов.
type Kind string

const (
	DiscoveryFailed    Kind = "DiscoveryFailed"
	ModelNotFound      Kind = "ModelNotFound"
	ModelInactive      Kind = "ModelInactive"
	RecordNotFound     Kind = "RecordNotFound"
	ValidationFailed   Kind = "ValidationFailed"
	UniquenessConflict Kind = "UniquenessConflict"
	ConfigWriteFailed  Kind = "ConfigWriteFailed"
	SchemaSyncFailed   Kind = "SchemaSyncFailed"
	Internal           Kind = "Internal"
)

// FieldError: одна проблема с конкретным полем; списки таких ошибок
// уходят клиенту в details.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError: общий интерфейс для адаптеров (HTTP, CLI).
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

type Error struct {
	Kind    Kind
	Model   string
	Field   string
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Model != "" {
		msg = e.Model + ": " + msg
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Code() string { return string(e.Kind) }

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ModelNotFound, RecordNotFound:
		return http.StatusNotFound
	case ModelInactive:
		return http.StatusForbidden
	case ValidationFailed:
		return http.StatusBadRequest
	case UniquenessConflict:
		return http.StatusConflict
	case DiscoveryFailed, ConfigWriteFailed, SchemaSyncFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, model, format string, args ...any) *Error {
	return &Error{Kind: kind, Model: model, Message: fmt.Sprintf(format, args...)}
}

// Wrap сохраняет стек причины (cockroachdb/errors), сообщение остаётся коротким.
func Wrap(kind Kind, model string, err error, format string, args ...any) *Error {
	if err == nil {
		return New(kind, model, format, args...)
	}
	return &Error{
		Kind:    kind,
		Model:   model,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.WithStackDepth(err, 1),
	}
}

func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func NotFound(model string) *Error {
	return New(ModelNotFound, model, "model not found")
}

func Inactive(model string) *Error {
	return New(ModelInactive, model, "model is inactive")
}

// KindOf возвращает вид ошибки; всё, что не *Error, считается Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus для произвольной ошибки.
func HTTPStatus(err error) int {
	var ae AppError
	if errors.As(err, &ae) {
		return ae.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Response: тело ответа об ошибке {error, message, details?}.
type Response struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

func ToResponse(err error) Response {
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if msg == "" {
			msg = string(e.Kind)
		}
		return Response{Error: e.Code(), Message: msg, Field: e.Field, Details: e.Details}
	}
	return Response{Error: string(Internal), Message: "internal error"}
}
