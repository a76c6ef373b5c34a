// Package atomicfile пишет файлы через временный файл + rename,
// чтобы читатель никогда не увидел половину документа.
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Write атомарно заменяет файл path.
func Write(path string, data []byte, perm os.FileMode) error {
	st, err := Stage(path, data, perm)
	if err != nil {
		return err
	}
	return st.Commit()
}

// Staged: подготовленный, но ещё не опубликованный файл.
type Staged struct {
	Path string
	tmp  string
}

// Stage пишет данные во временный файл рядом с целевым (тот же каталог: rename не пересекает ФС).
func Stage(path string, data []byte, perm os.FileMode) (*Staged, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "mkdir %s", dir)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, errors.Wrapf(err, "create temp for %s", path)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, errors.Wrapf(err, "write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, errors.Wrapf(err, "sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, errors.Wrapf(err, "close %s", tmp)
	}
	if err := os.Chmod(tmp, perm); err != nil {
		_ = os.Remove(tmp)
		return nil, errors.Wrapf(err, "chmod %s", tmp)
	}
	return &Staged{Path: path, tmp: tmp}, nil
}

func (s *Staged) Commit() error {
	if err := os.Rename(s.tmp, s.Path); err != nil {
		_ = os.Remove(s.tmp)
		return errors.Wrapf(err, "rename %s", s.Path)
	}
	return nil
}

// Discard удаляет временный файл; безопасно вызывать после Commit.
func (s *Staged) Discard() {
	_ = os.Remove(s.tmp)
}

// Batch публикует набор файлов «всё или ничего» на этапе подготовки:
// если хотя бы один Stage упал, ни один целевой файл не тронут.
type Batch struct {
	staged []*Staged
}

func (b *Batch) Stage(path string, data []byte, perm os.FileMode) error {
	st, err := Stage(path, data, perm)
	if err != nil {
		b.Discard()
		return err
	}
	b.staged = append(b.staged, st)
	return nil
}

// Commit переименовывает файлы в порядке добавления.
func (b *Batch) Commit() error {
	for i, st := range b.staged {
		if err := st.Commit(); err != nil {
			for _, rest := range b.staged[i+1:] {
				rest.Discard()
			}
			b.staged = nil
			return err
		}
	}
	b.staged = nil
	return nil
}

func (b *Batch) Discard() {
	for _, st := range b.staged {
		st.Discard()
	}
	b.staged = nil
}

func (b *Batch) Len() int { return len(b.staged) }
