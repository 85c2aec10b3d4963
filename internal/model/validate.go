package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		e.Errors = append(e.Errors, FieldError{Field: field, Message: "is required"})
	}
}

// ValidateRecord checks a KeyedRecord before it is written.
func ValidateRecord(r *KeyedRecord) error {
	var ve ValidationError
	ve.required("namespace", r.Namespace)
	ve.required("identity", r.Identity)
	ve.required("key", r.Key)

	if !r.ValueType.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "value_type",
			Message: fmt.Sprintf("invalid value %q", r.ValueType),
		})
	}
	// NULL carries no payload; every other tag must.
	switch {
	case r.ValueType == TypeNull && r.Value != nil:
		ve.Errors = append(ve.Errors, FieldError{Field: "value", Message: "must be nil for NULL"})
	case r.ValueType != TypeNull && r.ValueType.IsValid() && r.Value == nil:
		ve.Errors = append(ve.Errors, FieldError{Field: "value", Message: "is required for " + r.ValueType.String()})
	}
	if r.ValueType.IsStructured() && r.Value != nil && !json.Valid([]byte(*r.Value)) {
		ve.Errors = append(ve.Errors, FieldError{Field: "value", Message: "contains invalid JSON"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateObject checks an ObjectRecord before it is written.
func ValidateObject(o *ObjectRecord) error {
	var ve ValidationError
	ve.required("namespace", o.Namespace)
	ve.required("id", o.ID)

	if !o.Format.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "format",
			Message: fmt.Sprintf("invalid value %q", o.Format),
		})
	}
	if o.Format == FormatJSON && !json.Valid([]byte(o.Payload)) {
		ve.Errors = append(ve.Errors, FieldError{Field: "payload", Message: "contains invalid JSON"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateTag checks a Tag before it is written.
func ValidateTag(tag *Tag) error {
	var ve ValidationError
	ve.required("namespace", tag.Namespace)
	ve.required("target_id", tag.TargetID)
	ve.required("name", tag.Name)

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
