package daemon

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrStateDir reports a state directory the daemon cannot use.
var ErrStateDir = errors.New("state directory unusable")

// checkDirectoryAccess verifies that path is a directory the process can
// read, write and traverse.
func checkDirectoryAccess(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s does not exist", ErrStateDir, path)
		}
		return fmt.Errorf("%w: stat %s: %v", ErrStateDir, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrStateDir, path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%w: %s: insufficient permissions: %v", ErrStateDir, path, err)
	}
	return nil
}
