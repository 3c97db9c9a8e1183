package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tsblobstore/tsblobstore/pkg/auth"
	"github.com/tsblobstore/tsblobstore/pkg/rserr"
)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

func TestCreateAndValidate(t *testing.T) {
	dir := t.TempDir()
	repo, err := auth.NewFileRepository(dir, fakeClock{t: time.Unix(0, 0)})
	require.NoError(t, err)
	require.True(t, repo.Empty())

	require.NoError(t, repo.Create("bootstrap", "s3cr3t"))
	require.False(t, repo.Empty())

	tok, err := repo.Validate("s3cr3t")
	require.NoError(t, err)
	require.Equal(t, "bootstrap", tok.Name)

	_, err = repo.Validate("wrong")
	require.True(t, rserr.Is(err, rserr.KindNotFound))
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	repo, err := auth.NewFileRepository(dir, fakeClock{t: time.Unix(0, 0)})
	require.NoError(t, err)

	require.NoError(t, repo.Create("a", "v1"))
	err = repo.Create("a", "v2")
	require.True(t, rserr.Is(err, rserr.KindConflict))
}

func TestRemoveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	repo, err := auth.NewFileRepository(dir, fakeClock{t: time.Unix(0, 0)})
	require.NoError(t, err)

	require.NoError(t, repo.Create("a", "v1"))
	require.NoError(t, repo.Remove("a"))
	require.NoError(t, repo.Remove("a"))

	_, err = repo.Get("a")
	require.True(t, rserr.Is(err, rserr.KindNotFound))
}

func TestTokensSurviveReload(t *testing.T) {
	dir := t.TempDir()
	clk := fakeClock{t: time.Unix(0, 0)}

	repo, err := auth.NewFileRepository(dir, clk)
	require.NoError(t, err)
	require.NoError(t, repo.Create("a", "v1"))

	reloaded, err := auth.NewFileRepository(dir, clk)
	require.NoError(t, err)

	tok, err := reloaded.Validate("v1")
	require.NoError(t, err)
	require.Equal(t, "a", tok.Name)
}
