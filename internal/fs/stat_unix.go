//go:build unix

package fs

import (
	"errors"
	"io/fs"
	"syscall"
	"time"
)

// Atime extracts the last access time from Unix stat data.
// ok is false when the underlying info carries no *syscall.Stat_t (mock
// infos in tests); callers treat that the same as a noatime mount.
func (m *OSFilesystemManager) Atime(info fs.FileInfo) (time.Time, bool) {
	if info == nil {
		return time.Time{}, false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(stat.Atim.Sec, stat.Atim.Nsec), true
}

// isCrossDevice reports whether err is the EXDEV rename failure.
func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
