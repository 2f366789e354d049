package resource

import (
	"errors"
	"fmt"
)

// ErrResourceNotFound is returned by Get when no resource of the
// requested type has been inserted.
var ErrResourceNotFound = errors.New("resource: not found")

// ErrDuplicateResource is returned by Insert when a resource of the
// same type already exists in the store.
var ErrDuplicateResource = errors.New("resource: duplicate insert")

// PoisonedError reports that a resource's guard was poisoned by a
// panic in a previous holder. It is never recovered silently: once
// poisoned, a resource stays poisoned.
type PoisonedError struct {
	TypeName string
}

func (e *PoisonedError) Error() string {
	return fmt.Sprintf("resource: lock for %s is poisoned", e.TypeName)
}

func (e *PoisonedError) Is(target error) bool {
	_, ok := target.(*PoisonedError)
	return ok
}
