package model

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/rasky/go-xdr/xdr2"
	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

// SaveAtomic serializes v with XDR and persists it as dirPath/filename,
// crash-safely. This is the pattern spec.md §9 requires of descriptor
// saves ("Implementations MUST write to a sibling temporary and
// atomic-rename..."), grounded directly on the teacher's
// directoryBackedPersistentStateStore.WritePersistentState: write the
// temporary file, fsync it, rename over the target, then fsync the
// containing directory so the rename itself is durable.
func SaveAtomic(dirPath, filename string, v interface{}) error {
	var buf bytes.Buffer
	if _, err := xdr2.Marshal(&buf, v); err != nil {
		return rserr.WrapWithKind(err, rserr.KindInternal, "failed to marshal "+filename)
	}

	tmpPath := filepath.Join(dirPath, filename+".new")
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to remove previous temporary file")
	}
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
	if err != nil {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to create temporary file")
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to write temporary file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to sync temporary file")
	}
	if err := f.Close(); err != nil {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to close temporary file")
	}

	targetPath := filepath.Join(dirPath, filename)
	if err := os.Rename(tmpPath, targetPath); err != nil {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to rename temporary file")
	}

	dir, err := os.Open(dirPath)
	if err != nil {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to open directory for sync")
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to sync directory")
	}
	return nil
}

// LoadInto reads dirPath/filename and unmarshals it into v. A missing file
// is reported via os.IsNotExist on the returned error so callers can
// distinguish "never created" from "corrupt".
func LoadInto(dirPath, filename string, v interface{}) error {
	path := filepath.Join(dirPath, filename)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to open "+filename)
	}
	defer f.Close()

	if _, err := xdr2.Unmarshal(f, v); err != nil {
		return rserr.WrapWithKind(err, rserr.KindCorrupt, "failed to parse "+filename)
	}
	return nil
}
