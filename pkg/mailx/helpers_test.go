package mailx_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/Abraxas-365/idp-mailer/pkg/fsx"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*logx.Logger, *syncBuffer) {
	out := &syncBuffer{}
	cfg := logx.DefaultConfig()
	cfg.EnableColors = false
	cfg.Level = logx.LevelDebug
	cfg.Output = out
	return logx.NewLogger(cfg), out
}

// memSource is an in-memory fsx.FileReader. Files in fail are listed but
// cannot be read.
type memSource struct {
	files   map[string]string
	fail    map[string]bool
	listErr error

	mu    sync.Mutex
	reads []string
}

func (m *memSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	m.reads = append(m.reads, path)
	m.mu.Unlock()

	if m.fail[path] {
		return nil, fsx.ReadFailed(path, errors.New("permission denied"))
	}
	data, ok := m.files[path]
	if !ok {
		return nil, fsx.NotFound(path)
	}
	return []byte(data), nil
}

func (m *memSource) List(context.Context, string) ([]fsx.FileInfo, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	infos := make([]fsx.FileInfo, 0, len(m.files)+len(m.fail))
	for name, data := range m.files {
		infos = append(infos, fsx.FileInfo{Name: name, Size: int64(len(data))})
	}
	for name := range m.fail {
		if _, ok := m.files[name]; !ok {
			infos = append(infos, fsx.FileInfo{Name: name})
		}
	}
	return infos, nil
}

func (m *memSource) readPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.reads)
}
