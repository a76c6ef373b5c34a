package crudconfig

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopmonkeyus/go-common/logger"

	"crudadmin/internal/atomicfile"
)

const (
	IndexFile  = "configTables.json"
	DetailFile = "configTableDetail.json"
)

// Store: три уровня хранения конфигурации (файл на модель, индекс, общий detail).
type Store interface {
	// LoadModel возвращает nil без ошибки, если файла модели нет.
	LoadModel(ctx context.Context, model string) (*ModelConfig, error)
	LoadIndex(ctx context.Context) (Index, error)
	LoadDetail(ctx context.Context) (Detail, error)
	// Commit публикует все изменения или ни одного (на этапе подготовки файлов).
	Commit(ctx context.Context, cs ChangeSet) error
}

// ChangeSet: то, что нужно записать; nil-поля не трогаются.
type ChangeSet struct {
	Models []*ModelConfig
	Detail Detail
	Index  *Index
}

type FileStore struct {
	ModelsDir  string
	IndexPath  string
	DetailPath string
	logger     logger.Logger
}

var _ Store = (*FileStore)(nil)

func NewFileStore(modelsDir, crudDir string, log logger.Logger) *FileStore {
	return &FileStore{
		ModelsDir:  modelsDir,
		IndexPath:  filepath.Join(crudDir, IndexFile),
		DetailPath: filepath.Join(crudDir, DetailFile),
		logger:     log.WithPrefix("[store]"),
	}
}

// кандидаты: <Model>.json, <model>.json, <model>s.json
func (s *FileStore) candidates(model string) []string {
	lower := strings.ToLower(model)
	return []string{
		filepath.Join(s.ModelsDir, model+".json"),
		filepath.Join(s.ModelsDir, lower+".json"),
		filepath.Join(s.ModelsDir, lower+"s.json"),
	}
}

func (s *FileStore) modelPath(model string) string {
	return filepath.Join(s.ModelsDir, model+".json")
}

func (s *FileStore) LoadModel(ctx context.Context, model string) (*ModelConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, path := range s.candidates(model) {
		b, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		var cfg ModelConfig
		if err := json.Unmarshal(b, &cfg); err != nil {
			s.logger.Warn("skip unreadable model config %s: %s", path, err)
			continue
		}
		if cfg.Model == "" {
			cfg.Model = model
		}
		if !strings.EqualFold(cfg.Model, model) {
			s.logger.Warn("skip %s: declares model %q, want %q", path, cfg.Model, model)
			continue
		}
		cfg.Model = model
		return &cfg, nil
	}
	return nil, nil
}

func (s *FileStore) LoadIndex(ctx context.Context) (Index, error) {
	var ix Index
	if err := s.readJSON(ctx, s.IndexPath, &ix); err != nil {
		return Index{}, err
	}
	if ix.Models == nil {
		ix.Models = []IndexEntry{}
	}
	return ix, nil
}

func (s *FileStore) LoadDetail(ctx context.Context) (Detail, error) {
	d := Detail{}
	if err := s.readJSON(ctx, s.DetailPath, &d); err != nil {
		return nil, err
	}
	if d == nil {
		d = Detail{}
	}
	for name, cfg := range d {
		if cfg == nil {
			delete(d, name)
			continue
		}
		if cfg.Model == "" {
			cfg.Model = name
		}
	}
	return d, nil
}

// нет файла или битый JSON дают пустое значение (с предупреждением), а не ошибку.
func (s *FileStore) readJSON(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(b, v); err != nil {
		s.logger.Warn("treat unreadable %s as empty: %s", path, err)
	}
	return nil
}

func (s *FileStore) Commit(ctx context.Context, cs ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var batch atomicfile.Batch
	stage := func(path string, v any) error {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrapf(err, "encode %s", path)
		}
		return batch.Stage(path, append(b, '\n'), 0o644)
	}

	for _, m := range cs.Models {
		if m == nil || m.Model == "" {
			continue
		}
		if err := stage(s.modelPath(m.Model), m); err != nil {
			batch.Discard()
			return err
		}
	}
	if cs.Detail != nil {
		if err := stage(s.DetailPath, cs.Detail); err != nil {
			batch.Discard()
			return err
		}
	}
	// индекс последним, по нему модель становится видимой
	if cs.Index != nil {
		if err := stage(s.IndexPath, cs.Index); err != nil {
			batch.Discard()
			return err
		}
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	s.logger.Trace("committed %d model files (detail=%v index=%v)", len(cs.Models), cs.Detail != nil, cs.Index != nil)
	return nil
}
