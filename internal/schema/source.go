package schema

import (
	"context"
	"os"

	"crudadmin/internal/atomicfile"
)

// Source хранит текст схемы: читается discovery, пишется обратной синхронизацией.
type Source interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, text string) error
}

type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *FileSource) Write(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	perm := os.FileMode(0o644)
	if st, err := os.Stat(s.Path); err == nil {
		perm = st.Mode().Perm()
	}
	return atomicfile.Write(s.Path, []byte(text), perm)
}
