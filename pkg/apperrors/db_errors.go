package apperrors

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type UniqueViolationError struct {
	message string
	code    string // PostgreSQL error code (e.g., "23505")
}

type ForeignKeyViolationError struct {
	message string
	code    string // PostgreSQL error code (e.g., "23503")
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("%s (code: %s)", e.message, e.code)
}

func (f *ForeignKeyViolationError) Error() string {
	return fmt.Sprintf("%s (code: %s)", f.message, f.code)
}

// WrapDBError maps lib/pq error codes onto the typed taxonomy so services
// can switch on them instead of string-matching driver messages.
func WrapDBError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case "23505":
		return &UniqueViolationError{
			message: pqErr.Message,
			code:    string(pqErr.Code),
		}
	case "23503":
		return &ForeignKeyViolationError{
			message: "value is still referenced by other resources: " + pqErr.Message,
			code:    string(pqErr.Code),
		}
	default:
		return err
	}
}
