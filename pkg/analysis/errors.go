package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a blueprint-analysis failure. Each pipeline stage maps to
// a distinct code so operators and tests can discriminate cause.
type Code string

const (
	// CodeNotInitialized means provider credentials are absent; the
	// pipeline refuses to run.
	CodeNotInitialized Code = "NOT_INITIALIZED"
	// CodeFileRead means the original image could not be read.
	CodeFileRead Code = "FILE_READ_ERROR"
	// CodeAnalysisFailed means the provider call failed or was rejected
	// by the circuit breaker.
	CodeAnalysisFailed Code = "ANALYSIS_FAILED"
	// CodeParse means the response was not well-formed JSON.
	CodeParse Code = "PARSE_ERROR"
	// CodeValidation means the response decoded but failed the minimal
	// schema check; the message names the missing field.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeSave means the persistence transaction failed and was rolled back.
	CodeSave Code = "SAVE_ERROR"
	// CodeNotFound means the requested blueprint does not exist.
	CodeNotFound Code = "NOT_FOUND"
)

// Error is a structured analysis error carrying the failure code and the
// correlation id of the request it belongs to.
type Error struct {
	Code          Code
	Message       string
	CorrelationID string
	Cause         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Code))
	if e.CorrelationID != "" {
		parts = append(parts, fmt.Sprintf("correlation=%s", e.CorrelationID))
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a structured analysis error.
func NewError(code Code, message string, correlationID string, cause error) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Cause:         cause,
	}
}

// WithCorrelation returns the error with its correlation id set. Parsing
// and validation are pure and do not know the request id; the orchestrator
// attaches it before surfacing the error.
func (e *Error) WithCorrelation(id string) *Error {
	e.CorrelationID = id
	return e
}

// CodeOf extracts the Code from an error chain. Returns empty for errors
// that did not originate in this package.
func CodeOf(err error) Code {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Code
	}
	return ""
}
