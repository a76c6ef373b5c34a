package crudconfig

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopmonkeyus/go-common/logger"

	"crudadmin/internal/apperr"
	"crudadmin/internal/fieldtype"
	"crudadmin/internal/schema"
)

type Options struct {
	Prefix      string // префикс имени CRUD-модели, по умолчанию "Crud"
	PruneDetail bool
	Heuristics  *fieldtype.Heuristics
}

// Service: операции над конфигурацией моделей. Ничего не кэширует:
// каждое чтение идёт в хранилище.
type Service struct {
	store  Store
	source schema.Source
	opts   Options
	logger logger.Logger
}

func NewService(store Store, source schema.Source, log logger.Logger, opts Options) *Service {
	if opts.Prefix == "" {
		opts.Prefix = schema.DefaultCrudPrefix
	}
	if opts.Heuristics == nil {
		opts.Heuristics = fieldtype.DefaultHeuristics()
	}
	return &Service{store: store, source: source, opts: opts, logger: log.WithPrefix("[config]")}
}

func (s *Service) Heuristics() *fieldtype.Heuristics { return s.opts.Heuristics }

// RunDiscovery: полный проход схема → слияние → запись всех уровней.
func (s *Service) RunDiscovery(ctx context.Context) ([]IndexEntry, error) {
	discovered, err := s.discover(ctx)
	if err != nil {
		return nil, err
	}

	stored := make(map[string]*ModelConfig, len(discovered))
	for _, md := range discovered {
		cfg, err := s.store.LoadModel(ctx, md.Name)
		if err != nil {
			return nil, apperr.Wrap(apperr.DiscoveryFailed, md.Name, err, "load model config")
		}
		if cfg != nil {
			stored[md.Name] = cfg
		}
	}
	ix, err := s.store.LoadIndex(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.DiscoveryFailed, "", err, "load index")
	}
	detail, err := s.store.LoadDetail(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.DiscoveryFailed, "", err, "load detail")
	}

	res := Reconcile(ReconcileInput{
		Discovered:  discovered,
		Models:      stored,
		Detail:      detail,
		Index:       ix,
		PruneDetail: s.opts.PruneDetail,
		Heuristics:  s.opts.Heuristics,
	})
	if err := s.store.Commit(ctx, ChangeSet{Models: res.Models, Detail: res.Detail, Index: &res.Index}); err != nil {
		return nil, apperr.Wrap(apperr.ConfigWriteFailed, "", err, "write configuration")
	}

	if len(res.Removed) > 0 {
		s.logger.Info("removed from index: %s", strings.Join(res.Removed, ", "))
	}
	if len(res.Pruned) > 0 {
		s.logger.Info("pruned from detail: %s", strings.Join(res.Pruned, ", "))
	}
	s.logger.Info("discovery: %d models (%d added, %d removed)", len(res.Index.Models), len(res.Added), len(res.Removed))
	return res.Index.Models, nil
}

func (s *Service) discover(ctx context.Context) ([]schema.ModelDescriptor, error) {
	src, err := s.source.Read(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.DiscoveryFailed, "", err, "read schema")
	}
	models, err := schema.Discover(src, schema.DiscoverOptions{Prefix: s.opts.Prefix})
	if err != nil {
		return nil, apperr.Wrap(apperr.DiscoveryFailed, "", err, "parse schema")
	}
	return models, nil
}

func (s *Service) ListModels(ctx context.Context) ([]IndexEntry, error) {
	ix, err := s.store.LoadIndex(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "", err, "load index")
	}
	return ix.Models, nil
}

// GetModelConfig: модель должна быть в индексе; конфиг берётся из файла модели, иначе из detail.
func (s *Service) GetModelConfig(ctx context.Context, model string) (*ModelConfig, error) {
	ix, err := s.store.LoadIndex(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, model, err, "load index")
	}
	if _, _, ok := ix.Find(model); !ok {
		return nil, apperr.NotFound(model)
	}
	cfg, err := s.store.LoadModel(ctx, model)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, model, err, "load model config")
	}
	if cfg == nil {
		detail, err := s.store.LoadDetail(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, model, err, "load detail")
		}
		cfg = detail[model]
	}
	if cfg == nil {
		return nil, apperr.NotFound(model)
	}
	return cfg, nil
}

// RuntimeConfig отдаёт конфиг для работы с записями; неактивная модель заблокирована.
func (s *Service) RuntimeConfig(ctx context.Context, model string) (*ModelConfig, error) {
	cfg, err := s.GetModelConfig(ctx, model)
	if err != nil {
		return nil, err
	}
	if cfg.Status == StatusInactive {
		return nil, apperr.Inactive(model)
	}
	return cfg, nil
}

func (s *Service) SaveModelConfig(ctx context.Context, model string, in *ModelConfig) (*ModelConfig, error) {
	if in == nil {
		return nil, apperr.New(apperr.ValidationFailed, model, "empty configuration")
	}
	current, err := s.GetModelConfig(ctx, model)
	if err != nil {
		return nil, err
	}
	cfg := in.Clone()
	if cfg.Model == "" {
		cfg.Model = model
	}
	if cfg.Model != model {
		return nil, apperr.New(apperr.ValidationFailed, model, "model mismatch: %q", cfg.Model).WithField("model")
	}
	if cfg.Status == "" {
		cfg.Status = current.Status
	}
	if !cfg.Status.Valid() {
		return nil, apperr.New(apperr.ValidationFailed, model, "invalid status %q", cfg.Status).WithField("status")
	}
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = current.Title
	}
	if cfg.RowActions == nil {
		cfg.RowActions = current.RowActions
	}
	if cfg.BulkActions == nil {
		cfg.BulkActions = current.BulkActions
	}
	scalars, err := s.fieldScalars(ctx, current)
	if err != nil {
		return nil, err
	}
	for i := range cfg.Columns {
		c := &cfg.Columns[i]
		if c.UIType == "" {
			c.UIType = s.defaultUIType(current, scalars, c.Key)
		}
	}
	if problems := checkColumns(cfg.Columns, scalars); len(problems) > 0 {
		return nil, apperr.New(apperr.ValidationFailed, model, "invalid columns").WithDetails(problems)
	}
	if err := s.persist(ctx, cfg); err != nil {
		return nil, err
	}
	s.logger.Debug("saved %s (%d columns, status=%s)", model, len(cfg.Columns), cfg.Status)
	return cfg, nil
}

// ColumnPatch: частичное обновление колонки; nil-поля не меняются.
type ColumnPatch struct {
	Key        *string           `json:"key,omitempty"`
	Title      *string           `json:"title,omitempty"`
	UIType     *fieldtype.UIType `json:"type,omitempty"`
	Sortable   *bool             `json:"sortable,omitempty"`
	Filterable *bool             `json:"filterable,omitempty"`
	Frozen     *bool             `json:"frozen,omitempty"`
	Required   *bool             `json:"required,omitempty"`
	Hidden     *bool             `json:"hidden,omitempty"`
	Hideable   *bool             `json:"hideable,omitempty"`
	Render     *Render           `json:"render,omitempty"`
	Options    []string          `json:"options,omitempty"`
	Catalog    *string           `json:"catalog,omitempty"`
	Unique     *bool             `json:"unique,omitempty"`
	Validation *ColumnValidation `json:"validation,omitempty"`
	Width      *int              `json:"width,omitempty"`
	Align      *string           `json:"align,omitempty"`
}

func (p ColumnPatch) apply(c *ColumnConfig) {
	setIf(&c.Title, p.Title)
	setIf(&c.UIType, p.UIType)
	setIf(&c.Sortable, p.Sortable)
	setIf(&c.Filterable, p.Filterable)
	setIf(&c.Frozen, p.Frozen)
	setIf(&c.Required, p.Required)
	setIf(&c.Hidden, p.Hidden)
	setIf(&c.Hideable, p.Hideable)
	setIf(&c.Render, p.Render)
	setIf(&c.Catalog, p.Catalog)
	setIf(&c.Unique, p.Unique)
	setIf(&c.Width, p.Width)
	setIf(&c.Align, p.Align)
	if p.Options != nil {
		c.Options = p.Options
	}
	if p.Validation != nil {
		v := *p.Validation
		c.Validation = &v
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// SaveColumnConfig обновляет (или добавляет) одну колонку. Ключ менять нельзя.
func (s *Service) SaveColumnConfig(ctx context.Context, model, key string, patch ColumnPatch) (*ColumnConfig, error) {
	if patch.Key != nil && *patch.Key != key {
		return nil, apperr.New(apperr.ValidationFailed, model, "column key is immutable").WithField("key")
	}
	current, err := s.GetModelConfig(ctx, model)
	if err != nil {
		return nil, err
	}
	cfg := current.Clone()
	scalars, err := s.fieldScalars(ctx, current)
	if err != nil {
		return nil, err
	}

	col, idx, ok := cfg.Column(key)
	if !ok {
		col = ColumnConfig{
			Key:        key,
			Title:      Titleize(key),
			UIType:     s.defaultUIType(current, scalars, key),
			Sortable:   true,
			Filterable: true,
			Render:     RenderGridForm,
		}
	}
	patch.apply(&col)
	if ok {
		cfg.Columns[idx] = col
	} else {
		cfg.Columns = append(cfg.Columns, col)
	}

	if problems := checkColumns(cfg.Columns, scalars); len(problems) > 0 {
		return nil, apperr.New(apperr.ValidationFailed, model, "invalid column").WithField(key).WithDetails(problems)
	}
	if err := s.persist(ctx, cfg); err != nil {
		return nil, err
	}
	s.logger.Debug("saved column %s.%s (type=%s)", model, key, col.UIType)
	return &col, nil
}

// persist пишет модель во все три уровня одним коммитом.
func (s *Service) persist(ctx context.Context, cfg *ModelConfig) error {
	ix, err := s.store.LoadIndex(ctx)
	if err != nil {
		return apperr.Wrap(apperr.ConfigWriteFailed, cfg.Model, err, "load index")
	}
	detail, err := s.store.LoadDetail(ctx)
	if err != nil {
		return apperr.Wrap(apperr.ConfigWriteFailed, cfg.Model, err, "load detail")
	}
	detail[cfg.Model] = cfg
	ix.Upsert(IndexEntry{Model: cfg.Model, Title: cfg.Title, Status: cfg.Status})
	if err := s.store.Commit(ctx, ChangeSet{Models: []*ModelConfig{cfg}, Detail: detail, Index: &ix}); err != nil {
		return apperr.Wrap(apperr.ConfigWriteFailed, cfg.Model, err, "write configuration")
	}
	return nil
}

type SyncResult struct {
	Model    string   `json:"model"`
	Changed  bool     `json:"changed"`
	Appended bool     `json:"appended"`
	Warnings []string `json:"warnings"`
}

// SyncSchemaFromConfig переносит колонки конфига обратно в блок модели схемы.
func (s *Service) SyncSchemaFromConfig(ctx context.Context, model string) (SyncResult, error) {
	res := SyncResult{Model: model, Warnings: []string{}}
	cfg, err := s.GetModelConfig(ctx, model)
	if err != nil {
		return res, err
	}
	src, err := s.source.Read(ctx)
	if err != nil {
		return res, apperr.Wrap(apperr.SchemaSyncFailed, model, err, "read schema")
	}
	out, err := schema.RewriteModel(src, s.modelSpec(cfg))
	if err != nil {
		return res, apperr.Wrap(apperr.SchemaSyncFailed, model, err, "rewrite model")
	}
	res.Appended = out.Appended
	res.Warnings = append(res.Warnings, out.Warnings...)
	if out.Source == src {
		return res, nil
	}
	if err := s.source.Write(ctx, out.Source); err != nil {
		return res, apperr.Wrap(apperr.SchemaSyncFailed, model, err, "write schema")
	}
	res.Changed = true
	for _, w := range out.Warnings {
		s.logger.Warn("sync %s: %s", model, w)
	}
	s.logger.Info("schema synced for %s", model)
	return res, nil
}

func (s *Service) modelSpec(cfg *ModelConfig) schema.ModelSpec {
	spec := schema.ModelSpec{Name: cfg.Model, Annotation: schema.DefaultAnnotation}
	if strings.HasPrefix(strings.ToLower(cfg.Model), strings.ToLower(s.opts.Prefix)) {
		spec.Annotation = ""
	}
	for _, c := range cfg.Columns {
		spec.Fields = append(spec.Fields, schema.ManagedField{
			Key:      c.Key,
			Token:    fieldtype.SchemaToken(c.UIType),
			Required: c.IsRequired(),
			Unique:   c.Unique,
		})
	}
	return spec
}

// ModelKeys читает поля модели прямо из схемы.
func (s *Service) ModelKeys(ctx context.Context, model string) ([]schema.FieldDescriptor, error) {
	models, err := s.discover(ctx)
	if err != nil {
		return nil, err
	}
	for _, md := range models {
		if md.Name == model {
			if md.Fields == nil {
				return []schema.FieldDescriptor{}, nil
			}
			return md.Fields, nil
		}
	}
	return nil, apperr.NotFound(model)
}

type NewModel struct {
	Model       string         `json:"model"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      Status         `json:"status,omitempty"`
	Columns     []ColumnConfig `json:"columns"`
}

// CreateModel создаёт модель по данным пользователя: конфиг, блок в схеме, проход discovery.
func (s *Service) CreateModel(ctx context.Context, in NewModel) (*ModelConfig, error) {
	name := strings.TrimSpace(in.Model)
	if !schema.ValidIdentifier(name) {
		return nil, apperr.New(apperr.ValidationFailed, name, "invalid model name").WithField("model")
	}
	status := in.Status
	if status == "" {
		status = StatusUnset
	}
	if !status.Valid() {
		return nil, apperr.New(apperr.ValidationFailed, name, "invalid status %q", in.Status).WithField("status")
	}

	src, err := s.source.Read(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.SchemaSyncFailed, name, err, "read schema")
	}
	blk, err := schema.FindBlock(src, name)
	if err != nil {
		return nil, apperr.Wrap(apperr.SchemaSyncFailed, name, err, "parse schema")
	}
	ix, err := s.store.LoadIndex(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, name, err, "load index")
	}
	if _, _, indexed := ix.Find(name); blk != nil || indexed {
		return nil, apperr.New(apperr.UniquenessConflict, name, "model already exists").WithField("model")
	}

	cfg := &ModelConfig{
		Model:       name,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      status,
		Columns:     make([]ColumnConfig, 0, len(in.Columns)),
		RowActions:  DefaultRowActions(),
		BulkActions: DefaultBulkActions(),
	}
	if cfg.Title == "" {
		cfg.Title = name
	}
	for _, c := range in.Columns {
		if c.Title == "" {
			c.Title = Titleize(c.Key)
		}
		if c.UIType == "" {
			c.UIType = fieldtype.Text
		}
		if c.Render == "" {
			c.Render = RenderGridForm
		}
		cfg.Columns = append(cfg.Columns, c)
	}
	if problems := checkColumns(cfg.Columns, nil); len(problems) > 0 {
		return nil, apperr.New(apperr.ValidationFailed, name, "invalid columns").WithDetails(problems)
	}

	// сначала конфиг (без индекса), потом схема, потом discovery сведёт всё вместе
	if err := s.store.Commit(ctx, ChangeSet{Models: []*ModelConfig{cfg}}); err != nil {
		return nil, apperr.Wrap(apperr.ConfigWriteFailed, name, err, "write model config")
	}
	out, err := schema.RewriteModel(src, s.modelSpec(cfg))
	if err != nil {
		return nil, apperr.Wrap(apperr.SchemaSyncFailed, name, err, "compose model block")
	}
	if err := s.source.Write(ctx, out.Source); err != nil {
		return nil, apperr.Wrap(apperr.SchemaSyncFailed, name, err, "write schema")
	}
	if _, err := s.RunDiscovery(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("model %s created with %d columns", name, len(cfg.Columns))
	return s.GetModelConfig(ctx, name)
}

// fieldScalars собирает скалярные семейства известных ключей модели. Тип
// поля из схемы главнее колонки текущего конфига: колонку можно удалить и
// добавить заново, а поле в схеме останется тем же.
func (s *Service) fieldScalars(ctx context.Context, current *ModelConfig) (map[string]fieldtype.Scalar, error) {
	out := map[string]fieldtype.Scalar{}
	for _, c := range current.Columns {
		out[c.Key] = fieldtype.ScalarOf(c.UIType)
	}
	src, err := s.source.Read(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.SchemaSyncFailed, current.Model, err, "read schema")
	}
	blk, err := schema.FindBlock(src, current.Model)
	if err != nil {
		return nil, apperr.Wrap(apperr.SchemaSyncFailed, current.Model, err, "parse schema")
	}
	if blk == nil {
		return out, nil
	}
	for _, f := range blk.Fields {
		if !schema.IsStructural(f.Name) {
			out[f.Name] = fieldtype.ScalarFromToken(f.Type)
		}
	}
	return out, nil
}

// defaultUIType: тип прежней колонки, иначе тип по скаляру поля схемы, иначе text.
func (s *Service) defaultUIType(current *ModelConfig, scalars map[string]fieldtype.Scalar, key string) fieldtype.UIType {
	if prev, _, ok := current.Column(key); ok {
		return prev.UIType
	}
	if scalar, ok := scalars[key]; ok {
		return fieldtype.DefaultUIType(scalar, key, s.opts.Heuristics)
	}
	return fieldtype.Text
}

// checkColumns: ключи уникальны и допустимы, UI-тип известен и, для ключа
// с известным скалярным типом, остаётся в его семействе.
func checkColumns(cols []ColumnConfig, scalars map[string]fieldtype.Scalar) []apperr.FieldError {
	var problems []apperr.FieldError
	add := func(code, field, format string, args ...any) {
		problems = append(problems, apperr.FieldError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
	}
	seen := map[string]bool{}
	for _, c := range cols {
		switch {
		case !schema.ValidIdentifier(c.Key):
			add("invalid_key", c.Key, "invalid column key %q", c.Key)
			continue
		case schema.IsStructural(c.Key):
			add("reserved_key", c.Key, "column %q is managed automatically", c.Key)
			continue
		case seen[c.Key]:
			add("duplicate_key", c.Key, "duplicate column %q", c.Key)
			continue
		}
		seen[c.Key] = true

		if _, ok := fieldtype.Lookup(c.UIType); !ok {
			add("unknown_type", c.Key, "unknown type %q", c.UIType)
			continue
		}
		if scalar, ok := scalars[c.Key]; ok && !fieldtype.IsAllowed(scalar, c.UIType) {
			add("type_not_allowed", c.Key, "type %q is not allowed for a %s field", c.UIType, scalar)
		}
		switch c.Render {
		case "", RenderGrid, RenderForm, RenderGridForm:
		default:
			add("invalid_render", c.Key, "invalid render %q", c.Render)
		}
		if c.Validation != nil && c.Validation.Pattern != "" {
			if _, err := regexp.Compile(c.Validation.Pattern); err != nil {
				add("invalid_pattern", c.Key, "invalid pattern: %s", err)
			}
		}
	}
	return problems
}
