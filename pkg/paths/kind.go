package paths

// Kind identifies one of the fixed framework directories.
type Kind int

// Directory kinds. Root is the base directory itself.
const (
	Root Kind = iota
	Logs
	Scripts
	Public
	Private
	Databases
	Plugins
	Templates
	Flowstreams
	Modules
	Tmp
)

var kindNames = [...]string{
	Root:        "root",
	Logs:        "logs",
	Scripts:     "scripts",
	Public:      "public",
	Private:     "private",
	Databases:   "databases",
	Plugins:     "plugins",
	Templates:   "templates",
	Flowstreams: "flowstreams",
	Modules:     "modules",
	Tmp:         "tmp",
}

// Kinds lists every directory kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

// String returns the directory name of the kind.
func (k Kind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= Root && int(k) < len(kindNames)
}

// ParseKind maps a directory name to its kind.
// "temp" is accepted as an alias for tmp.
func ParseKind(name string) (Kind, bool) {
	if name == "temp" {
		return Tmp, true
	}
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}
