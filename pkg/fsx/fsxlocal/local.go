package fsxlocal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Abraxas-365/idp-mailer/pkg/fsx"
)

// LocalFileSystem implements fsx.FileReader over a directory on disk.
type LocalFileSystem struct {
	basePath string
}

// NewLocalFileSystem opens basePath for reading. Unlike a writable store
// the directory must already exist.
func NewLocalFileSystem(basePath string) (*LocalFileSystem, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fsx.InvalidRoot(basePath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fsx.InvalidRoot(basePath, err)
	}
	if !info.IsDir() {
		return nil, fsx.InvalidRoot(basePath, fmt.Errorf("%s is not a directory", absPath))
	}

	return &LocalFileSystem{basePath: absPath}, nil
}

// GetBasePath returns the absolute root directory.
func (fs *LocalFileSystem) GetBasePath() string {
	return fs.basePath
}

func (fs *LocalFileSystem) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(fs.fullPath(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fsx.NotFound(path)
		}
		return nil, fsx.ReadFailed(path, err)
	}
	return data, nil
}

func (fs *LocalFileSystem) List(_ context.Context, path string) ([]fsx.FileInfo, error) {
	entries, err := os.ReadDir(fs.fullPath(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fsx.NotFound(path)
		}
		return nil, fsx.ReadFailed(path, err)
	}

	infos := make([]fsx.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, fsx.FileInfo{
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		})
	}
	return infos, nil
}

// fullPath resolves path under the root; ".." segments cannot escape it.
func (fs *LocalFileSystem) fullPath(path string) string {
	clean := filepath.Clean("/" + strings.TrimPrefix(filepath.FromSlash(path), "/"))
	return filepath.Join(fs.basePath, clean)
}
