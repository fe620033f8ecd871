package common

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, deref(e.Value), e.Message)
}

// Validator provides validation utilities
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Fields returns the names of the fields that failed, in order, without repeats.
func (v *Validator) Fields() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range v.errors {
		if _, ok := seen[e.Field]; ok {
			continue
		}
		seen[e.Field] = struct{}{}
		out = append(out, e.Field)
	}
	return out
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value any) *ValidationError

// Required fails on nil, nil pointers and blank strings.
func Required(fieldName string, value any) *ValidationError {
	if isAbsent(value) {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	return nil
}

// CurrencyCode accepts ISO 4217 codes. Absent values pass; pair with Required.
func CurrencyCode(fieldName string, value any) *ValidationError {
	if isAbsent(value) {
		return nil
	}
	str, ok := stringValue(value)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if !currencyRegex.MatchString(str) {
		return &ValidationError{
			Field:   fieldName,
			Value:   value,
			Message: "must be 3 uppercase letters (ISO 4217)",
		}
	}
	return nil
}

// ISODate accepts YYYY-MM-DD. Absent values pass.
func ISODate(fieldName string, value any) *ValidationError {
	if isAbsent(value) {
		return nil
	}
	str, ok := stringValue(value)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if _, err := time.Parse(time.DateOnly, str); err != nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be an ISO 8601 date (YYYY-MM-DD)"}
	}
	return nil
}

// NonNegative accepts numbers >= 0. Absent values pass.
func NonNegative(fieldName string, value any) *ValidationError {
	var f float64
	switch v := value.(type) {
	case nil:
		return nil
	case *float64:
		if v == nil {
			return nil
		}
		f = *v
	case float64:
		f = v
	default:
		return &ValidationError{Field: fieldName, Value: value, Message: "must be numeric"}
	}
	if f < 0 {
		return &ValidationError{Field: fieldName, Value: value, Message: "must not be negative"}
	}
	return nil
}

func isAbsent(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *string:
		return v == nil || strings.TrimSpace(*v) == ""
	case *float64:
		return v == nil
	}
	return false
}

func stringValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	}
	return "", false
}

func deref(value any) any {
	switch v := value.(type) {
	case *string:
		if v != nil {
			return *v
		}
	case *float64:
		if v != nil {
			return *v
		}
	}
	return value
}
