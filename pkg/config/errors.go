package config

import "errors"

// Errors.
var (
	ErrRead    = errors.New("config: failed to read")
	ErrParse   = errors.New("config: failed to parse")
	ErrInvalid = errors.New("config: invalid value")
	ErrNoFile  = errors.New("config: store has no file to watch")
)
