package reports

import (
	"errors"
	"fmt"
)

// ErrorCode classifies report generation failures.
type ErrorCode string

const (
	CodeQuery        ErrorCode = "QUERY_ERROR"
	CodeCalculation  ErrorCode = "CALCULATION_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error is the single failure type returned by report generators.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reports: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("reports: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the code from err, or "" when err is not a report error.
func CodeOf(err error) ErrorCode {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return ""
}

func queryError(message string, err error) *Error {
	return &Error{Code: CodeQuery, Message: message, Err: err}
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// recoverCalculation converts a panic raised while computing a report into a
// CALCULATION_ERROR assigned to *errp.
func recoverCalculation(report string, errp *error) {
	if r := recover(); r != nil {
		cause, ok := r.(error)
		if !ok {
			cause = fmt.Errorf("%v", r)
		}
		*errp = &Error{Code: CodeCalculation, Message: report + " calculation failed", Err: cause}
	}
}
