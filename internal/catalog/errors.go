package catalog

import "fmt"

// InvalidRequestError names the request field that failed validation.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &InvalidRequestError{Field: field, Reason: reason}
}
