// Package apperr is the error taxonomy shared by the core and the presenters.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION_FAILED"
	CodeDuplicateKey    Code = "DUPLICATE_KEY"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeExternalService Code = "EXTERNAL_SERVICE_ERROR"
	CodeNotFound        Code = "NOT_FOUND"
	CodeTimeout         Code = "GENERATION_TIMEOUT"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// FieldError names one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag,omitempty"`
	Message string `json:"message"`
}

type Error struct {
	Code       Code          `json:"code"`
	Message    string        `json:"message"`
	Details    string        `json:"details,omitempty"`
	Fields     []FieldError  `json:"fields,omitempty"`
	RetryAfter time.Duration `json:"-"`
	Cause      error         `json:"-"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// StatusCode maps the code onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateKey:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may re-invoke the same operation later.
func (e *Error) Retryable() bool {
	return e.Code == CodeRateLimited || e.Code == CodeTimeout
}

func newError(code Code, message, details string, cause error) *Error {
	return &Error{Code: code, Message: message, Details: details, Cause: cause}
}

func Validation(details string, fields ...FieldError) *Error {
	e := newError(CodeValidation, "Validation failed", details, nil)
	e.Fields = fields
	return e
}

func DuplicateKey(resource, key string, cause error) *Error {
	return newError(CodeDuplicateKey, fmt.Sprintf("%s already exists", resource), key, cause)
}

func RateLimited(service string, retryAfter time.Duration, cause error) *Error {
	e := newError(CodeRateLimited, "Rate limit reached", fmt.Sprintf("%s is throttling requests", service), cause)
	e.RetryAfter = retryAfter
	return e
}

func ExternalService(service string, cause error) *Error {
	return newError(CodeExternalService, "External service error", fmt.Sprintf("failed to communicate with %s", service), cause)
}

func Timeout(service string, after time.Duration, cause error) *Error {
	return newError(CodeTimeout, "External service timed out", fmt.Sprintf("%s did not answer within %s", service, after), cause)
}

func NotFound(resource string) *Error {
	return newError(CodeNotFound, fmt.Sprintf("%s not found", resource), "", nil)
}

func Internal(message string, cause error) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return newError(CodeInternal, message, "", cause)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func Is(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// CodeOf returns CodeInternal for errors outside the taxonomy.
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// FromValidator converts validator.ValidationErrors into a ValidationError.
// Any other error is returned as-is.
func FromValidator(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fieldMessage(fe),
		})
		names = append(names, fe.Field())
	}
	return Validation("invalid fields: "+strings.Join(names, ", "), fields...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
