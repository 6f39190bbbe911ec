// Package defaults provides embedded files written by finch init.
package defaults

import "embed"

//go:embed skills/*
var defaultsFS embed.FS

// GetDefaultsFS returns the embedded filesystem containing default files.
func GetDefaultsFS() embed.FS {
	return defaultsFS
}
