package config

import "errors"

var (
	// ErrMissingKey is returned when a required manifest/descriptor key is absent.
	ErrMissingKey = errors.New("missing required key")
	// ErrInvalidPolicy is returned when an allow/deny policy rule cannot be parsed.
	ErrInvalidPolicy = errors.New("invalid policy rule")
	// ErrOldLockVersion is returned when a lock file has no version key at all
	// (the pre-versioning schema).
	ErrOldLockVersion = errors.New("lock file has no version field, treating as version 1")
	// ErrUnsupportedLockVersion is returned when a lock file's version is
	// present but not the one this codebase understands.
	ErrUnsupportedLockVersion = errors.New("unsupported lock file version")
)
