package invoice

import (
	"errors"
	"fmt"
)

var (
	// ErrMissing marks a required value that is absent
	ErrMissing = errors.New("value is required")
	// ErrNotNumber marks text that does not parse as a number
	ErrNotNumber = errors.New("value is not a number")
)

// FieldError ties a conversion or validation failure to a field path such as
// "total" or "line_items[1].amount"
type FieldError struct {
	Field string
	Text  string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("%s: %q: %v", e.Field, e.Text, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
