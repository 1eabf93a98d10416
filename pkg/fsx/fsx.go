package fsx

import (
	"context"
	"time"

	"github.com/Abraxas-365/idp-mailer/pkg/errx"
)

// FileInfo represents information about a file
type FileInfo struct {
	Name    string // Base name of the file
	Size    int64  // File size in bytes
	ModTime time.Time
	IsDir   bool
}

// FileReader provides read-only access to a tree of files addressed by
// slash-separated paths relative to the reader's root.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, path string) ([]FileInfo, error)
}

var fsxErrors = errx.NewRegistry("FSX")

var (
	ErrNotFound    = fsxErrors.Register("NOT_FOUND", errx.TypeNotFound, "File not found")
	ErrReadFailed  = fsxErrors.Register("READ_FAILED", errx.TypeInternal, "Failed to read file")
	ErrInvalidRoot = fsxErrors.Register("INVALID_ROOT", errx.TypeValidation, "Invalid file source root")
)

// NotFound builds an ErrNotFound error for path.
func NotFound(path string) *errx.Error {
	return fsxErrors.New(ErrNotFound).WithDetail("path", path)
}

// ReadFailed builds an ErrReadFailed error for path wrapping cause.
func ReadFailed(path string, cause error) *errx.Error {
	return fsxErrors.NewWithCause(ErrReadFailed, cause).WithDetail("path", path)
}

// InvalidRoot builds an ErrInvalidRoot error for root wrapping cause.
func InvalidRoot(root string, cause error) *errx.Error {
	return fsxErrors.NewWithCause(ErrInvalidRoot, cause).WithDetail("root", root)
}
