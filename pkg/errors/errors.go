package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// ValidationError carries a field-keyed map of business-rule violations.
// It maps to HTTP 400 with the field errors exposed in the response meta.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		Message: message,
		Fields:  map[string][]string{},
	}
}

func (e *ValidationError) AddFieldError(field string, messages ...string) *ValidationError {
	e.Fields[field] = append(e.Fields[field], messages...)
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for field, messages := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(messages, "; ")))
	}
	return e.Message + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	herr := httperror.NewHTTPError(http.StatusBadRequest, e.Message)
	for field, messages := range e.Fields {
		herr = herr.AddMetaValue(field, messages)
	}
	return herr
}

func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// InvalidDataError signals a reference-data lookup failure, such as a company
// that does not exist or has the wrong institution type. Maps to HTTP 400.
type InvalidDataError struct {
	Message string
}

func NewInvalidDataError(format string, args ...any) *InvalidDataError {
	return &InvalidDataError{Message: fmt.Sprintf(format, args...)}
}

func (e *InvalidDataError) Error() string {
	return e.Message
}

func (e *InvalidDataError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Message)
}

func IsInvalidDataError(err error) bool {
	_, ok := err.(*InvalidDataError)
	return ok
}

// MicroserviceClientError signals a downstream platform service failure after
// the local mutation already succeeded. Maps to HTTP 500.
type MicroserviceClientError struct {
	Service string
	Message string
	Cause   error
}

func NewMicroserviceClientError(service, message string, cause error) *MicroserviceClientError {
	return &MicroserviceClientError{
		Service: service,
		Message: fmt.Sprintf("%s: %s", service, message),
		Cause:   cause,
	}
}

func (e *MicroserviceClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MicroserviceClientError) Unwrap() error {
	return e.Cause
}

func (e *MicroserviceClientError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusInternalServerError, e.Message)
}

func IsMicroserviceClientError(err error) bool {
	_, ok := err.(*MicroserviceClientError)
	return ok
}

// ToHTTPError converts any domain error to its HTTP form, passing through
// errors that already carry a status code.
func ToHTTPError(err error) error {
	switch e := err.(type) {
	case *ValidationError:
		return e.ToHTTPError()
	case *InvalidDataError:
		return e.ToHTTPError()
	case *MicroserviceClientError:
		return e.ToHTTPError()
	default:
		return err
	}
}
