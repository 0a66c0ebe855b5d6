package paths

import (
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Resolver maps directory kinds and logical paths to filesystem locations
// under a fixed base directory.
//
// The kind table is computed once in New and never modified afterwards, so
// lookups need no synchronization. Filesystem helpers (EnsureDir, Unlink,
// RemoveAll) block on I/O.
type Resolver struct {
	base string
	dirs map[Kind]string
	mk   singleflight.Group
}

// New creates a resolver rooted at base.
// An empty base resolves relative to the working directory.
func New(base string) *Resolver {
	base = filepath.Clean(base)

	dirs := make(map[Kind]string, len(kindNames))
	for _, k := range Kinds() {
		if k == Root {
			dirs[k] = base
			continue
		}
		dirs[k] = filepath.Join(base, k.String())
	}

	return &Resolver{base: base, dirs: dirs}
}

// Base returns the root directory of the resolver.
func (r *Resolver) Base() string {
	return r.base
}

// Within reports whether path, once made absolute and cleaned, lies inside
// the base directory. Symlinks are not followed.
func (r *Resolver) Within(path string) bool {
	base, err := filepath.Abs(r.base)
	if err != nil {
		return false
	}
	p, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Resolve returns the directory of kind joined with the optional fragments.
// Without fragments the bare directory is returned. No I/O is performed.
// An invalid kind resolves against the base directory.
func (r *Resolver) Resolve(kind Kind, fragment ...string) string {
	dir, ok := r.dirs[kind]
	if !ok {
		dir = r.base
	}
	if len(fragment) == 0 {
		return dir
	}
	return filepath.Join(append([]string{dir}, fragment...)...)
}

// Directory resolves by directory name. Names that are not registered fall
// back to the base directory.
func (r *Resolver) Directory(name string, fragment ...string) string {
	kind, ok := ParseKind(name)
	if !ok {
		kind = -1
	}
	return r.Resolve(kind, fragment...)
}

// Route applies the escape rules to a logical path requested in the context
// of the named directory. Rules are checked in order:
//
//  1. "~rest" is an absolute escape: rest is returned verbatim and dirName is
//     ignored.
//  2. "_plugin/rest" is plugin scoped and resolves to
//     plugins/<plugin>/<dirName>/<rest>; dirName "root" contributes no
//     segment. A leading "<dirName>/" in rest is consumed so the directory
//     appears once.
//  3. Anything else resolves inside the named directory.
func (r *Resolver) Route(path, dirName string) string {
	if rest, ok := strings.CutPrefix(path, "~"); ok {
		return rest
	}

	if rest, ok := strings.CutPrefix(path, "_"); ok {
		if plugin, remainder, found := strings.Cut(rest, "/"); found && plugin != "" {
			dir := dirName
			if dir == Root.String() {
				dir = ""
			}
			if dir != "" {
				remainder = strings.TrimPrefix(remainder, dir+"/")
			}
			return r.Resolve(Plugins, plugin, dir, remainder)
		}
	}

	return r.Directory(dirName, path)
}

// Root returns the base directory joined with fragments.
func (r *Resolver) Root(fragment ...string) string { return r.Resolve(Root, fragment...) }

// Logs returns the logs directory joined with fragments.
func (r *Resolver) Logs(fragment ...string) string { return r.Resolve(Logs, fragment...) }

// Scripts returns the scripts directory joined with fragments.
func (r *Resolver) Scripts(fragment ...string) string { return r.Resolve(Scripts, fragment...) }

// Public returns the public directory joined with fragments.
func (r *Resolver) Public(fragment ...string) string { return r.Resolve(Public, fragment...) }

// Private returns the private directory joined with fragments.
func (r *Resolver) Private(fragment ...string) string { return r.Resolve(Private, fragment...) }

// Databases returns the databases directory joined with fragments.
func (r *Resolver) Databases(fragment ...string) string { return r.Resolve(Databases, fragment...) }

// Plugins returns the plugins directory joined with fragments.
func (r *Resolver) Plugins(fragment ...string) string { return r.Resolve(Plugins, fragment...) }

// Templates returns the templates directory joined with fragments.
func (r *Resolver) Templates(fragment ...string) string { return r.Resolve(Templates, fragment...) }

// Flowstreams returns the flowstreams directory joined with fragments.
func (r *Resolver) Flowstreams(fragment ...string) string { return r.Resolve(Flowstreams, fragment...) }

// Modules returns the modules directory joined with fragments.
func (r *Resolver) Modules(fragment ...string) string { return r.Resolve(Modules, fragment...) }

// Tmp returns the tmp directory joined with fragments.
func (r *Resolver) Tmp(fragment ...string) string { return r.Resolve(Tmp, fragment...) }

// Temp is an alias for Tmp.
func (r *Resolver) Temp(fragment ...string) string { return r.Tmp(fragment...) }
