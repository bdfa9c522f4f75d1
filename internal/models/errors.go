package models

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code surfaced to CLI and MCP callers.
type Code string

const (
	CodeInvalidChoice  Code = "INVALID_CHOICE"
	CodeInvalidContext Code = "INVALID_CONTEXT"
	CodeInvalidState   Code = "INVALID_STATE"
)

// ErrValidation matches every validation error via errors.Is.
var ErrValidation = errors.New("validation error")

// InvalidChoiceError reports a choice outside the closed choice set.
type InvalidChoiceError struct {
	Value string
}

func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("invalid choice %q (valid: communicate, silence, escalate)", e.Value)
}

func (e *InvalidChoiceError) Is(target error) bool { return target == ErrValidation }

// Code returns CodeInvalidChoice.
func (e *InvalidChoiceError) Code() Code { return CodeInvalidChoice }

// InvalidContextError reports a context outside the closed context set.
type InvalidContextError struct {
	Value string
}

func (e *InvalidContextError) Error() string {
	return fmt.Sprintf("invalid context %q (valid: business, philosophy, science, policy)", e.Value)
}

func (e *InvalidContextError) Is(target error) bool { return target == ErrValidation }

// Code returns CodeInvalidContext.
func (e *InvalidContextError) Code() Code { return CodeInvalidContext }

// InvalidStateError reports an operation that is illegal in the current state.
// No mutation is applied when it is returned.
type InvalidStateError struct {
	Op     string
	Step   Step
	Reason string
}

func (e *InvalidStateError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s not allowed in %s step: %s", e.Op, e.Step, e.Reason)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrValidation }

// Code returns CodeInvalidState.
func (e *InvalidStateError) Code() Code { return CodeInvalidState }

// ErrorCode extracts the machine-readable code from err, or "" if err is not
// a validation error.
func ErrorCode(err error) Code {
	var coded interface{ Code() Code }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
