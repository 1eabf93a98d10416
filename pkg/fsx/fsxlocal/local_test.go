package fsxlocal_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/idp-mailer/pkg/errx"
	"github.com/Abraxas-365/idp-mailer/pkg/fsx"
	"github.com/Abraxas-365/idp-mailer/pkg/fsx/fsxlocal"
)

func TestLocalFileSystem_ReadAndList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "welcome.html"), []byte("<p>hi</p>"), 0o644))

	fs, err := fsxlocal.NewLocalFileSystem(dir)
	require.NoError(t, err)
	ctx := context.Background()

	data, err := fs.ReadFile(ctx, "welcome.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(data))

	infos, err := fs.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "welcome.html", infos[0].Name)

	_, err = fs.ReadFile(ctx, "missing.html")
	assert.True(t, errx.HasCode(err, fsx.ErrNotFound))
}

func TestLocalFileSystem_CannotEscapeRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "templates")
	require.NoError(t, os.Mkdir(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("x"), 0o644))

	fs, err := fsxlocal.NewLocalFileSystem(root)
	require.NoError(t, err)

	_, err = fs.ReadFile(context.Background(), "../secret.txt")
	assert.True(t, errx.HasCode(err, fsx.ErrNotFound))
}

func TestNewLocalFileSystem_MissingDir(t *testing.T) {
	_, err := fsxlocal.NewLocalFileSystem(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errx.HasCode(err, fsx.ErrInvalidRoot))
}
