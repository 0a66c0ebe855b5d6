package paths

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DirPerm is the permission used for directories created by the resolver.
const DirPerm = 0o755

// Stat is the advisory result of an existence check.
type Stat struct {
	Size   int64
	Exists bool
	IsFile bool
}

// EnsureDir creates path and any missing parents. It is idempotent.
// Concurrent calls for the same path share a single mkdir.
func (r *Resolver) EnsureDir(path string) error {
	_, err, _ := r.mk.Do(path, func() (any, error) {
		return nil, os.MkdirAll(path, DirPerm)
	})
	if err != nil {
		return newPathError("mkdir", path, ErrCreateDir, err)
	}
	return nil
}

// EnsureKind creates the directory of kind.
func (r *Resolver) EnsureKind(kind Kind) error {
	return r.EnsureDir(r.Resolve(kind))
}

// Join makes sure dir exists and returns dir joined with fragment.
// The joined path is returned even when the directory cannot be created.
func (r *Resolver) Join(dir, fragment string) (string, error) {
	p := filepath.Join(dir, fragment)
	if err := r.EnsureDir(dir); err != nil {
		return p, err
	}
	return p, nil
}

// Exists stats path. Any failure, including a cancelled context, yields the
// zero Stat: callers cannot tell "missing" from "stat failed".
func (r *Resolver) Exists(ctx context.Context, path string) Stat {
	if ctx.Err() != nil {
		return Stat{}
	}
	return r.Stat(path)
}

// Stat is the context-free form of Exists.
func (r *Resolver) Stat(path string) Stat {
	info, err := os.Stat(path)
	if err != nil {
		return Stat{}
	}
	return Stat{Exists: true, Size: info.Size(), IsFile: info.Mode().IsRegular()}
}

// Unlink removes a single file or empty directory.
// A missing path is not an error.
func (r *Resolver) Unlink(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return newPathError("unlink", path, ErrRemove, err)
	}
	return nil
}

// RemoveAll removes path and everything below it.
// A missing path is not an error.
func (r *Resolver) RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return newPathError("rmdir", path, ErrRemove, err)
	}
	return nil
}
