//go:build !windows

package preflight

import (
	"golang.org/x/sys/unix"
)

// checkDirWritable asks the kernel whether the current user may create
// entries in path, without creating anything.
func checkDirWritable(path string) error {
	return unix.Access(path, unix.W_OK|unix.X_OK)
}

// isUnsafeRoot reports whether path is the filesystem root.
func isUnsafeRoot(path string) bool {
	return path == "/"
}
