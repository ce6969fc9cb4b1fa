//go:build windows

package preflight

import (
	"os"
	"path/filepath"
	"strings"
)

// checkDirWritable creates and removes a probe file, since access(2) has no
// meaningful Windows counterpart for ACL-protected directories.
func checkDirWritable(path string) error {
	f, err := os.CreateTemp(path, ".venv-bootstrap-writetest-*.tmp")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// isUnsafeRoot checks if the given path is a drive root or a bare drive letter (e.g., "C:").
func isUnsafeRoot(path string) bool {
	if path == "." || path == string(filepath.Separator) {
		return true
	}

	// A bare drive letter like "C:" is ambiguous, and "C:\" is the drive root.
	// A UNC path like `\\server\share` is safe because its volume name contains a separator.
	vol := filepath.VolumeName(path)
	if vol == "" {
		return false
	}
	isBareDrive := path == vol && !strings.Contains(vol, string(filepath.Separator))
	isCleanedBareDrive := path == vol+"."
	isDriveRoot := path == vol+string(filepath.Separator)
	return isBareDrive || isCleanedBareDrive || isDriveRoot
}
