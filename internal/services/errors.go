package services

import (
	"errors"

	"github.com/plataa/triagem/internal/screening"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorIncomplete   ErrorCode = "incomplete"
	ErrorDuplicate    ErrorCode = "duplicate"
	ErrorConflict     ErrorCode = "conflict"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorUnauthorized ErrorCode = "unauthorized"
)

// ServiceError is the typed failure every service returns for expected
// conditions. Err, when set, is the core error it was built from.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Err }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewDuplicateError(msg string) error {
	return &ServiceError{Code: ErrorDuplicate, Message: msg, Err: screening.ErrDuplicateSubmission}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// fromCoreError wraps a screening error into a ServiceError of the matching
// code. Errors outside the core taxonomy are returned unchanged.
func fromCoreError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsServiceError(err); ok {
		return err
	}
	switch screening.Categorize(err) {
	case screening.CategoryIncomplete:
		return &ServiceError{Code: ErrorIncomplete, Message: err.Error(), Err: err}
	case screening.CategoryDuplicate:
		return &ServiceError{Code: ErrorDuplicate, Message: err.Error(), Err: err}
	case screening.CategoryInvalid:
		return &ServiceError{Code: ErrorInvalid, Message: err.Error(), Err: err}
	}
	return err
}

// ErrorCategory reduces any error to the four user-visible message
// categories. Access failures count as invalid requests.
func ErrorCategory(err error) screening.ErrorCategory {
	if err == nil {
		return ""
	}
	if se, ok := AsServiceError(err); ok {
		switch se.Code {
		case ErrorIncomplete:
			return screening.CategoryIncomplete
		case ErrorDuplicate, ErrorConflict:
			return screening.CategoryDuplicate
		case ErrorInvalid, ErrorNotFound, ErrorForbidden, ErrorUnauthorized:
			return screening.CategoryInvalid
		}
	}
	return screening.Categorize(err)
}
