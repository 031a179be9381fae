package ft

import (
	"io"
	"io/fs"
	"time"
)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access so the scanner, executor and reorganizer can be
// tested against temp directories and so no component touches os directly.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// Walk visits every regular file under root, depth-first. Entries
	// matched by the exclusion matcher are skipped. An error returned from
	// fn for one file aborts the walk; per-file failure isolation is the
	// caller's job.
	Walk(root string, exclude *ExcludeMatcher, fn func(path string, info fs.FileInfo) error) error

	// Move renames a file, falling back to copy+remove across devices.
	// Parent directories of newPath must already exist.
	Move(oldPath, newPath string) error

	// Copy duplicates a file's content to dst, which must not exist.
	Copy(src, dst string) error

	// WriteFile streams r to path atomically (temp file + rename).
	WriteFile(path string, r io.Reader) error

	// Remove deletes a single file.
	Remove(path string) error

	// EnsureDir creates a directory and any missing parents.
	EnsureDir(path string) error

	// PruneEmptyDirs removes directories left empty under root, bottom-up,
	// never removing root itself. Returns the number removed.
	PruneEmptyDirs(root string) (int, error)

	// Atime reports a file's last access time where the platform stat
	// provides it. ok is false on filesystems that don't track it.
	Atime(info fs.FileInfo) (atime time.Time, ok bool)
}

