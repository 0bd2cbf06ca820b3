//go:build !windows

package cache

import (
	"os"

	"golang.org/x/sys/unix"
)

// freeDiskSpace returns the bytes available to unprivileged users at path,
// or -1 when it cannot be determined.
func freeDiskSpace(path string) int64 {
	stat, err := os.Stat(path)
	if err != nil || !stat.IsDir() {
		return -1
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return -1
	}

	return int64(fs.Bavail) * int64(fs.Bsize)
}
