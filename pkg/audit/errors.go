package audit

import (
	"errors"
	"fmt"
)

// Errors.
var (
	ErrInvalidName = errors.New("audit: invalid log name")
	ErrMarshal     = errors.New("audit: failed to encode record")
	ErrWrite       = errors.New("audit: failed to append record")
)

// WriteError reports a failed append to the audit log Name at Path.
type WriteError struct {
	Err  error
	Name string
	Path string
}

func (e *WriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("audit %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("audit %q (%s): %v", e.Name, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
