package auth

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tsblobstore/tsblobstore/pkg/clock"
	"github.com/tsblobstore/tsblobstore/pkg/model"
	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

// tokenRecord is the on-disk representation of one token, persisted with
// the same crash-safe XDR save primitive used for entry/bucket settings
// (model.SaveAtomic) — one file per token, named after the token.
type tokenRecord struct {
	Hash         string
	CreatedAtUTC int64
}

// FileRepository persists tokens as one file per token under a directory,
// normally "<data_path>/.auth/tokens".
type FileRepository struct {
	dirPath string
	clk     clock.Clock

	mu     sync.RWMutex
	tokens map[string]Token
}

// NewFileRepository creates (if needed) dirPath and loads any tokens
// already stored there.
func NewFileRepository(dirPath string, clk clock.Clock) (*FileRepository, error) {
	if err := os.MkdirAll(dirPath, 0o700); err != nil {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to create token repository directory")
	}

	r := &FileRepository{
		dirPath: dirPath,
		clk:     clk,
		tokens:  make(map[string]Token),
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, rserr.WrapWithKind(err, rserr.KindIO, "failed to scan token repository directory")
	}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		var rec tokenRecord
		if err := model.LoadInto(dirPath, name, &rec); err != nil {
			continue
		}
		r.tokens[name] = Token{
			Name:      name,
			Hash:      rec.Hash,
			CreatedAt: time.UnixMicro(rec.CreatedAtUTC).UTC(),
		}
	}
	return r, nil
}

func (r *FileRepository) Create(name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[name]; ok {
		return rserr.New(rserr.KindConflict, "token %q already exists", name)
	}

	now := r.clk.Now().UTC()
	rec := tokenRecord{Hash: hashValue(value), CreatedAtUTC: now.UnixMicro()}
	if err := model.SaveAtomic(r.dirPath, name, &rec); err != nil {
		return err
	}
	r.tokens[name] = Token{Name: name, Hash: rec.Hash, CreatedAt: now}
	return nil
}

func (r *FileRepository) Get(name string) (Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[name]
	if !ok {
		return Token{}, rserr.New(rserr.KindNotFound, "token %q does not exist", name)
	}
	return t, nil
}

func (r *FileRepository) List() ([]Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	return out, nil
}

func (r *FileRepository) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, name)
	if err := os.Remove(filepath.Join(r.dirPath, name)); err != nil && !os.IsNotExist(err) {
		return rserr.WrapWithKind(err, rserr.KindIO, "failed to remove token file")
	}
	return nil
}

func (r *FileRepository) Validate(bearer string) (Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hash := hashValue(bearer)
	for _, t := range r.tokens {
		if hashesEqual(t.Hash, hash) {
			return t, nil
		}
	}
	return Token{}, rserr.New(rserr.KindNotFound, "invalid bearer token")
}

func (r *FileRepository) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens) == 0
}
