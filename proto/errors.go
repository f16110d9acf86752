package proto

import "errors"

// ErrBadPath is returned when a proto file's resolved destination has no
// parent directory to create (e.g. an empty package path).
var ErrBadPath = errors.New("bad proto file path")
