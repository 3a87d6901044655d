package models

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors for models
var (
	// Session errors
	ErrInvalidSessionID   = errors.New("session ID is required")
	ErrInvalidProjectPath = errors.New("project path is required")

	// Store errors
	ErrNotFound = errors.New("session state not found")
)

// ValidationErrors collects per-field validation failures.
type ValidationErrors struct {
	fields []string
}

// Add records a field-level validation error.
func (v *ValidationErrors) Add(field string, err error) {
	if err == nil {
		return
	}
	v.fields = append(v.fields, fmt.Sprintf("%s: %v", field, err))
}

// AddMessage records a field-level validation message.
func (v *ValidationErrors) AddMessage(field, message string) {
	v.fields = append(v.fields, fmt.Sprintf("%s: %s", field, message))
}

// Err returns the collected errors as a single error, or nil if none.
func (v *ValidationErrors) Err() error {
	if v == nil || len(v.fields) == 0 {
		return nil
	}
	return errors.New(strings.Join(v.fields, "; "))
}
