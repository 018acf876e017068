package service

import (
	"errors"
	"strings"
)

// Workflow errors.  Store-level errors (not found, duplicates) come from
// the repository package and are passed through wrapped.
var (
	// ErrInvalidRange is returned when a schedule's start date is after its end date.
	ErrInvalidRange = errors.New("start date is after end date")
	// ErrOutOfBounds is returned when a requested seat lies outside the room grid.
	ErrOutOfBounds = errors.New("seat outside the room grid")
	// ErrSeatTaken is returned when a requested seat was already sold.
	ErrSeatTaken = errors.New("seat already taken")
	// ErrSoldOut is returned when the showtime does not have enough free seats left.
	ErrSoldOut = errors.New("not enough seats left")
	// ErrBadCredentials is returned by Login for a wrong password.
	ErrBadCredentials = errors.New("invalid credentials")
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is a validation failure with one entry per violated field.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// add appends a field error and returns the updated list.
func (fe FieldErrors) add(field, msg string) FieldErrors {
	return append(fe, FieldError{Field: field, Message: msg})
}

// orNil returns nil when there are no field errors so callers can write
// `return errs.orNil()`.
func (fe FieldErrors) orNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}
