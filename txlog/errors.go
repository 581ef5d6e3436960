package txlog

import (
	"errors"
	"fmt"
)

// ErrVersionConflict is returned by Propose when the target version has
// already been committed by another writer. Callers re-resolve the latest
// version and retry.
var ErrVersionConflict = errors.New("version already committed")

// VersionNotFoundError is returned when a requested version does not exist in
// the log.
type VersionNotFoundError struct {
	Prefix  string
	Version uint64
}

func (e VersionNotFoundError) Error() string {
	return fmt.Sprintf("version %d not found in %s", e.Version, e.Prefix)
}

func (e VersionNotFoundError) Is(target error) bool {
	_, ok := target.(VersionNotFoundError)
	return ok
}
