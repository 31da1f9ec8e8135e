package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies action and task failures on the wire and in results.
type ErrorKind string

const (
	ErrorKindNavigation      ErrorKind = "navigation_error"  // page load failed or URL was blocked
	ErrorKindElementNotFound ErrorKind = "element_not_found" // no element matched the selector
	ErrorKindTimeout         ErrorKind = "timeout"           // a DOM operation exceeded its deadline
	ErrorKindTranslation     ErrorKind = "translation_error" // the model call or its output failed
	ErrorKindBudgetExceeded  ErrorKind = "budget_exceeded"   // step or wall-clock budget exhausted
)

// ActionError is the failure record attached to an ActionResult and carried
// on error events.
type ActionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewActionError creates an ActionError with a formatted message.
func NewActionError(kind ErrorKind, format string, args ...interface{}) *ActionError {
	return &ActionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsActionError unwraps err to an *ActionError if one is in the chain.
func AsActionError(err error) (*ActionError, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// TranslationReason distinguishes why a translation failed.
type TranslationReason string

const (
	TranslationMalformed   TranslationReason = "malformed_response" // output parsed but is not a valid action
	TranslationUnavailable TranslationReason = "model_unavailable"  // transport failure, timeout, or provider error
)

// TranslationError is returned by the translator when a model call produced
// no usable action. Malformed responses carry a short excerpt of the
// offending output so the next attempt can show the model what went wrong.
type TranslationError struct {
	Reason TranslationReason
	Detail string
	Err    error
}

func (e *TranslationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("translation failed (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("translation failed (%s)", e.Reason)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// NewMalformedResponseError records model output that could not be parsed
// into a valid action.
func NewMalformedResponseError(detail string) *TranslationError {
	return &TranslationError{Reason: TranslationMalformed, Detail: detail}
}

// NewModelUnavailableError records a transport or provider failure.
func NewModelUnavailableError(err error) *TranslationError {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &TranslationError{Reason: TranslationUnavailable, Detail: detail, Err: err}
}

// AsTranslationError unwraps err to a *TranslationError if one is in the chain.
func AsTranslationError(err error) (*TranslationError, bool) {
	var te *TranslationError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
