package asset_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsblobstore/tsblobstore/pkg/asset"
)

func TestDefaultConsoleServesIndex(t *testing.T) {
	console := asset.DefaultConsole()

	f, err := console.Open("index.html")
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Contains(t, string(data), "<html")

	_, ok := console.ModTime("index.html")
	require.True(t, ok)

	_, ok = console.ModTime("does-not-exist")
	require.False(t, ok)
}

func TestDirManagerServesOperatorOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.html"), []byte("<html>custom</html>"), 0o644))

	mgr := asset.NewDirManager(dir)
	f, err := mgr.Open("custom.html")
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "<html>custom</html>", string(data))
}
