package apperrors

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError carries field-level detail so the caller can correct
// its input. Never retried automatically.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = message
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// StateConflictError signals an operation that is illegal for the entity's
// current state, e.g. modifying a retired asset or re-recording an
// inventory line.
type StateConflictError struct {
	Entity string
	State  string
	Reason string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s in state %s: %s", e.Entity, e.State, e.Reason)
}

type PermissionError struct {
	Actor  string
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("actor %s lacks permission for %s", e.Actor, e.Action)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func Validationf(field, format string, args ...any) *ValidationError {
	err := NewValidationError()
	err.Add(field, fmt.Sprintf(format, args...))
	return err
}

func StateConflictf(entity, state, format string, args ...any) *StateConflictError {
	return &StateConflictError{
		Entity: entity,
		State:  state,
		Reason: fmt.Sprintf(format, args...),
	}
}
