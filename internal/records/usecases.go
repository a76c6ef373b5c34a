package records

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopmonkeyus/go-common/logger"

	"crudadmin/internal/apperr"
	"crudadmin/internal/crudconfig"
	"crudadmin/internal/query"
	"crudadmin/internal/schema"
	"crudadmin/internal/validation"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

// ConfigProvider отдаёт актуальный конфиг модели
// (неактивная модель возвращает ModelInactive).
type ConfigProvider interface {
	RuntimeConfig(ctx context.Context, model string) (*crudconfig.ModelConfig, error)
}

type ListInput struct {
	Page      int
	PageSize  int
	Search    string
	SortBy    string
	SortOrder string
}

type ListResult struct {
	Items      []Record
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

type RemoveResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type BulkRemoveResult struct {
	Deleted []string `json:"deleted"`
	Missing []string `json:"missing"`
}

// UseCases: операции над записями одной модели. Конфиг читается на каждый вызов.
type UseCases struct {
	model   string
	configs ConfigProvider
	repo    Repository
	opts    []validation.Option
	logger  logger.Logger
}

func NewUseCases(model string, configs ConfigProvider, repo Repository, log logger.Logger, opts ...validation.Option) *UseCases {
	return &UseCases{
		model:   model,
		configs: configs,
		repo:    repo,
		opts:    opts,
		logger:  log.WithPrefix("[records]"),
	}
}

func (u *UseCases) Model() string { return u.model }

func (u *UseCases) List(ctx context.Context, in ListInput) (ListResult, error) {
	cfg, err := u.configs.RuntimeConfig(ctx, u.model)
	if err != nil {
		return ListResult{}, err
	}
	page, size := in.Page, in.PageSize
	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	// смещение (page-1)*size должно помещаться в int
	if lastPage := math.MaxInt / size; page > lastPage {
		page = lastPage
	}

	q := query.Build(cfg.Columns, in.Search, in.SortBy, in.SortOrder)
	res, err := u.repo.List(ctx, ListParams{
		Where:   q.Where,
		OrderBy: q.OrderBy,
		Skip:    (page - 1) * size,
		Take:    size,
	})
	if err != nil {
		return ListResult{}, u.storageErr(err, "list records")
	}
	items := res.Items
	if items == nil {
		items = []Record{}
	}
	return ListResult{
		Items:      items,
		Total:      res.Total,
		Page:       page,
		PageSize:   size,
		TotalPages: max(1, (res.Total+size-1)/size),
	}, nil
}

func (u *UseCases) Get(ctx context.Context, id string) (Record, error) {
	if _, err := u.configs.RuntimeConfig(ctx, u.model); err != nil {
		return nil, err
	}
	rec, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, u.storageErr(err, "find record %q", id)
	}
	return rec, nil
}

// Create валидирует вход, проверяет уникальные колонки и пишет запись.
func (u *UseCases) Create(ctx context.Context, input Record) (Record, error) {
	cfg, err := u.configs.RuntimeConfig(ctx, u.model)
	if err != nil {
		return nil, err
	}
	data, err := u.validate(cfg, input)
	if err != nil {
		return nil, err
	}
	if err := u.checkUnique(ctx, cfg, data, ""); err != nil {
		return nil, err
	}
	rec, err := u.repo.Create(ctx, data)
	if err != nil {
		return nil, u.storageErr(err, "create record")
	}
	u.logger.Debug("created %s/%v", u.model, rec[schema.FieldID])
	return rec, nil
}

// Update накладывает вход поверх сохранённой записи и валидирует результат целиком.
func (u *UseCases) Update(ctx context.Context, id string, input Record) (Record, error) {
	cfg, err := u.configs.RuntimeConfig(ctx, u.model)
	if err != nil {
		return nil, err
	}
	current, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, u.storageErr(err, "find record %q", id)
	}
	merged := make(Record, len(current)+len(input))
	for k, v := range current {
		if !schema.IsStructural(k) {
			merged[k] = v
		}
	}
	for k, v := range input {
		merged[k] = v
	}
	data, err := u.validate(cfg, merged)
	if err != nil {
		return nil, err
	}
	if err := u.checkUnique(ctx, cfg, data, id); err != nil {
		return nil, err
	}
	rec, err := u.repo.Update(ctx, id, data)
	if err != nil {
		return nil, u.storageErr(err, "update record %q", id)
	}
	u.logger.Debug("updated %s/%s", u.model, id)
	return rec, nil
}

func (u *UseCases) Remove(ctx context.Context, id string) (RemoveResult, error) {
	if _, err := u.configs.RuntimeConfig(ctx, u.model); err != nil {
		return RemoveResult{}, err
	}
	if err := u.repo.Delete(ctx, id); err != nil {
		return RemoveResult{}, u.storageErr(err, "delete record %q", id)
	}
	u.logger.Debug("deleted %s/%s", u.model, id)
	return RemoveResult{ID: id, Deleted: true}, nil
}

// RemoveMany удаляет по списку id; отсутствующие id не считаются ошибкой.
func (u *UseCases) RemoveMany(ctx context.Context, ids []string) (BulkRemoveResult, error) {
	res := BulkRemoveResult{Deleted: []string{}, Missing: []string{}}
	if _, err := u.configs.RuntimeConfig(ctx, u.model); err != nil {
		return res, err
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		err := u.repo.Delete(ctx, id)
		switch {
		case err == nil:
			res.Deleted = append(res.Deleted, id)
		case errors.Is(err, ErrNotFound):
			res.Missing = append(res.Missing, id)
		default:
			return res, u.storageErr(err, "delete record %q", id)
		}
	}
	u.logger.Info("bulk delete %s: %d deleted, %d missing", u.model, len(res.Deleted), len(res.Missing))
	return res, nil
}

// ExistsByField: проверка занятости значения; поле должно быть колонкой модели.
func (u *UseCases) ExistsByField(ctx context.Context, field string, value any, excludeID string) (bool, error) {
	cfg, err := u.configs.RuntimeConfig(ctx, u.model)
	if err != nil {
		return false, err
	}
	v := validation.Compile(cfg, u.opts...)
	coerced, ok := v.Coerce(field, value)
	if !ok {
		return false, apperr.New(apperr.ValidationFailed, u.model, "unknown field %q", field).WithField(field)
	}
	exists, err := u.repo.ExistsByField(ctx, field, coerced, excludeID)
	if err != nil {
		return false, u.storageErr(err, "check %s", field)
	}
	return exists, nil
}

func (u *UseCases) validate(cfg *crudconfig.ModelConfig, input Record) (Record, error) {
	out, problems := validation.Compile(cfg, u.opts...).Validate(input)
	if len(problems) > 0 {
		u.logger.Trace("validation %s: %d problems", u.model, len(problems))
		return nil, apperr.New(apperr.ValidationFailed, u.model, "validation failed").WithDetails(problems)
	}
	return out, nil
}

func (u *UseCases) checkUnique(ctx context.Context, cfg *crudconfig.ModelConfig, data Record, excludeID string) error {
	var taken []apperr.FieldError
	for _, c := range cfg.Columns {
		if !c.Unique {
			continue
		}
		val, ok := data[c.Key]
		if !ok || val == nil {
			continue
		}
		exists, err := u.repo.ExistsByField(ctx, c.Key, val, excludeID)
		if err != nil {
			return u.storageErr(err, "check %s", c.Key)
		}
		if exists {
			taken = append(taken, apperr.FieldError{
				Code:    "unique",
				Field:   c.Key,
				Message: c.TitleOrKey() + " is already in use",
			})
		}
	}
	if len(taken) == 0 {
		return nil
	}
	return apperr.New(apperr.UniquenessConflict, u.model, "value already exists").
		WithField(taken[0].Field).
		WithDetails(taken)
}

// storageErr переводит ошибки порта в виды apperr.
func (u *UseCases) storageErr(err error, format string, args ...any) error {
	var uv *UniqueViolation
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(apperr.RecordNotFound, u.model, err, format, args...)
	case errors.As(err, &uv):
		e := apperr.Wrap(apperr.UniquenessConflict, u.model, err, "value already exists")
		if uv.Field != "" {
			e = e.WithField(uv.Field).WithDetails([]apperr.FieldError{{
				Code: "unique", Field: uv.Field, Message: uv.Field + " is already in use",
			}})
		}
		return e
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	u.logger.Error("%s: %s", u.model, err)
	return apperr.Wrap(apperr.Internal, u.model, err, format, args...)
}

// Registry собирает UseCases по имени модели.
type Registry struct {
	configs ConfigProvider
	repos   RepositoryFactory
	opts    []validation.Option
	logger  logger.Logger
}

func NewRegistry(configs ConfigProvider, repos RepositoryFactory, log logger.Logger, opts ...validation.Option) *Registry {
	return &Registry{configs: configs, repos: repos, opts: opts, logger: log}
}

func (r *Registry) For(model string) (*UseCases, error) {
	repo, err := r.repos.Repository(model)
	if err != nil {
		return nil, apperr.Wrap(apperr.ModelNotFound, model, err, "no repository")
	}
	return NewUseCases(model, r.configs, repo, r.logger, r.opts...), nil
}

// SortedKeys возвращает ключи записи по алфавиту, служебные первыми.
func SortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		si, sj := schema.IsStructural(keys[i]), schema.IsStructural(keys[j])
		if si != sj {
			return si
		}
		return keys[i] < keys[j]
	})
	return keys
}
