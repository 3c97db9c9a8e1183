// Package asset implements the read-only static-file provider spec.md §2
// lists as the "Asset manager (interface only)" — the web console's
// backing store.
package asset

import (
	"embed"
	"io/fs"
	"os"
	"time"
)

//go:embed console
var embeddedConsole embed.FS

// DefaultConsole is the bundled web console, served when no DirManager
// override is configured.
func DefaultConsole() Manager {
	sub, err := fs.Sub(embeddedConsole, "console")
	if err != nil {
		// console is embedded at build time; fs.Sub can only fail here
		// if the embed directive itself is wrong.
		panic(err)
	}
	return NewFSManager(sub)
}

// Manager serves read-only static files, generally the bundled web
// console.
type Manager interface {
	// Open returns a handle to the named asset. Callers must Close it.
	Open(name string) (fs.File, error)

	// ModTime reports an asset's last-modified time. ok is false if name
	// does not exist.
	ModTime(name string) (time.Time, bool)
}

// fsManager adapts any fs.FS (an embedded console, or an operator-supplied
// directory) into a Manager.
type fsManager struct {
	fsys fs.FS
}

// NewFSManager wraps an arbitrary fs.FS.
func NewFSManager(fsys fs.FS) Manager {
	return fsManager{fsys: fsys}
}

func (m fsManager) Open(name string) (fs.File, error) {
	return m.fsys.Open(name)
}

func (m fsManager) ModTime(name string) (time.Time, bool) {
	info, err := fs.Stat(m.fsys, name)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// NewDirManager wraps an operator-supplied directory on disk, letting a
// deployment swap in a custom web console without rebuilding the binary.
func NewDirManager(dirPath string) Manager {
	return NewFSManager(os.DirFS(dirPath))
}
