package apperror

import (
	"errors"
	"net/http"
)

type Code string

const (
	BadRequest Code = "BAD_REQUEST"
	NotFound   Code = "NOT_FOUND"
	Internal   Code = "INTERNAL"
	Conflict   Code = "CONFLICT"

	// Pipeline taxonomy.
	Source      Code = "SOURCE"
	DataQuality Code = "DATA_QUALITY"
	Store       Code = "STORE"
	Replication Code = "REPLICATION"
)

type AppError struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

// Wrap attaches a taxonomy code to err. A nil err yields nil.
func Wrap(code Code, message string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{code: code, message: message, cause: err}
}

func (e *AppError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *AppError) Unwrap() error   { return e.cause }
func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }

func (e *AppError) HTTPStatus() int {
	switch e.code {
	case BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
