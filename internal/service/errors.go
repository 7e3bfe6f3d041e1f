package service

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated 请求未携带有效身份
var ErrUnauthenticated = errors.New("unauthenticated")

// PersistenceError reports that images were generated but could not be saved.
// Refunded is false when returning the reserved credits failed as well; the
// sweeper releases such a reservation once it expires.
type PersistenceError struct {
	Cause          error
	GeneratedCount int
	Refunded       bool
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("generated %d sheet(s) but could not save them: %v", e.GeneratedCount, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
