package httpapi

import (
	"io/fs"

	"github.com/tsblobstore/tsblobstore/pkg/asset"
)

// consoleFS adapts an asset.Manager to fs.FS so it can back an
// http.FileServer.
type consoleFS struct {
	m asset.Manager
}

func (c consoleFS) Open(name string) (fs.File, error) {
	return c.m.Open(name)
}
