package model

import (
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

func (e *ValidationError) add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// ValidateRegistrant checks that the registrant carries the fields required
// for a registration to be recorded and confirmed.
func ValidateRegistrant(r *Registrant) error {
	var ve ValidationError

	if r.Name == "" {
		ve.add("notes."+NoteName, "is required")
	}
	if r.WhatsApp == "" {
		ve.add("notes."+NoteWhatsApp, "is required")
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
