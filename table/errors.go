package table

import (
	"errors"
	"fmt"
)

// ErrConcurrentModification is returned when a mutating operation exhausts its
// retry budget without winning a version slot.
var ErrConcurrentModification = errors.New("concurrent modification")

// TableExistsError is returned when creating a table that already exists.
type TableExistsError struct {
	Location string
}

func (e TableExistsError) Error() string {
	return fmt.Sprintf("table at %s already exists", e.Location)
}

func (e TableExistsError) Is(target error) bool {
	_, ok := target.(TableExistsError)
	return ok
}

// TableNotFoundError is returned when operating on a table that has not been
// created.
type TableNotFoundError struct {
	Location string
}

func (e TableNotFoundError) Error() string {
	return fmt.Sprintf("table at %s not found", e.Location)
}

func (e TableNotFoundError) Is(target error) bool {
	_, ok := target.(TableNotFoundError)
	return ok
}
