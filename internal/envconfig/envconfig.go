// Package envconfig resolves the small set of PROTOFETCH_* environment
// overrides, the way the teacher's main.go resolves GIT_MIRROR_* overrides
// with plain os.LookupEnv helpers rather than a config-file layer.
package envconfig

import "os"

// String returns the value of the PROTOFETCH_<key> environment variable,
// or fallback if it is unset.
func String(key, fallback string) string {
	if v, ok := os.LookupEnv("PROTOFETCH_" + key); ok {
		return v
	}
	return fallback
}

// CacheDir returns PROTOFETCH_CACHE_DIR, or fallback if unset.
func CacheDir(fallback string) string {
	return String("CACHE_DIR", fallback)
}

// GitProtocol returns PROTOFETCH_GIT_PROTOCOL, or fallback if unset.
func GitProtocol(fallback string) string {
	return String("GIT_PROTOCOL", fallback)
}
