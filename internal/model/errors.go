package model

import (
	"fmt"
	"strings"
)

// ParseError represents failures reading an input document
type ParseError struct {
	Document string
	Field    string
	Message  string
	Cause    error
}

func (e *ParseError) Error() string {
	if e.Field != "" && e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Document, e.Field, e.Message, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Document, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Document, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Document, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(document, field, message string, cause error) *ParseError {
	return &ParseError{
		Document: document,
		Field:    field,
		Message:  message,
		Cause:    cause,
	}
}

// Validation rule identifiers
const (
	RuleRequired      = "required"
	RuleFormat        = "format"
	RuleCheckDigit    = "check_digit"
	RuleExclusive     = "exclusive"
	RuleEnum          = "enum"
	RuleRange         = "range"
	RuleRateMax       = "rate_max"
	RuleRateMin       = "rate_min"
	RuleIncidence     = "incidence"
	RuleGroupRequired = "group_required"
	RuleForbidden     = "forbidden"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// ValidationErrors collects every violation found in one pass
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 1 {
		return v[0].Error()
	}
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(v), strings.Join(msgs, "; "))
}

// Err returns nil for an empty collection
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// HasRule reports whether any violation matches rule
func (v ValidationErrors) HasRule(rule string) bool {
	for _, e := range v {
		if e.Rule == rule {
			return true
		}
	}
	return false
}

// TransportError represents network, timeout or protocol failures talking
// to the submission service. StatusCode is zero when no response arrived.
type TransportError struct {
	Op         string
	StatusCode int
	Detail     string
	Cause      error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " [HTTP %d]", e.StatusCode)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a new transport error
func NewTransportError(op string, status int, detail string, cause error) *TransportError {
	return &TransportError{
		Op:         op,
		StatusCode: status,
		Detail:     detail,
		Cause:      cause,
	}
}
