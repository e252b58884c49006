package service

import (
	"errors"
	"fmt"
	"strings"
)

// Returned by AccountDirectory implementations when the user does not exist.
var ErrAccountNotFound = errors.New("account not found")

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Request failed validation. Always detected before any I/O happens.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}
