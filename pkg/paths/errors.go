package paths

import "errors"

// Sentinel errors for filesystem operations.
var (
	// ErrCreateDir is returned when a directory cannot be created.
	ErrCreateDir = errors.New("paths: failed to create directory")

	// ErrRemove is returned when a file or directory cannot be removed.
	ErrRemove = errors.New("paths: failed to remove")
)

// PathError records a failed filesystem operation on a resolved path.
// Use errors.Is with the sentinel errors to classify it.
type PathError struct {
	Err  error
	Op   string
	Path string
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

func newPathError(op, path string, sentinel, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: errors.Join(sentinel, err)}
}
