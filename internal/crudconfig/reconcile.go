package crudconfig

import (
	"strings"

	"crudadmin/internal/fieldtype"
	"crudadmin/internal/schema"
)

type ReconcileInput struct {
	Discovered []schema.ModelDescriptor
	Models     map[string]*ModelConfig // файлы config/models/*.json
	Detail     Detail
	Index      Index
	// PruneDetail: удалять из detail модели, которых больше нет в схеме.
	PruneDetail bool
	Heuristics  *fieldtype.Heuristics
}

type ReconcileResult struct {
	Models  []*ModelConfig // в порядке discovery
	Index   Index
	Detail  Detail
	Added   []string // новые в индексе
	Removed []string // убраны из индекса
	Pruned  []string // убраны из detail
}

// Reconcile сводит найденные в схеме модели с сохранённой конфигурацией.
// Функция чистая: входные структуры не меняются.
func Reconcile(in ReconcileInput) ReconcileResult {
	var res ReconcileResult
	present := make(map[string]bool, len(in.Discovered))
	for _, md := range in.Discovered {
		present[md.Name] = true
	}

	// 1) индекс: жёсткая чистка
	res.Index.Models = make([]IndexEntry, 0, len(in.Index.Models)+len(in.Discovered))
	for _, e := range in.Index.Models {
		if !present[e.Model] {
			res.Removed = append(res.Removed, e.Model)
			continue
		}
		res.Index.Models = append(res.Index.Models, e)
	}

	// 2) detail: копия, чистка по флагу
	res.Detail = make(Detail, len(in.Detail)+len(in.Discovered))
	for name, cfg := range in.Detail {
		if in.PruneDetail && !present[name] {
			res.Pruned = append(res.Pruned, name)
			continue
		}
		res.Detail[name] = cfg
	}

	// 3) слияние по каждой найденной модели
	for _, md := range in.Discovered {
		stored := in.Models[md.Name]
		if stored == nil {
			stored = in.Detail[md.Name]
		}

		var cfg *ModelConfig
		if stored == nil {
			cfg = NewModelConfig(md, in.Heuristics)
		} else {
			cfg = mergeModel(stored.Clone(), md, in.Heuristics)
		}
		cfg.Status = resolveStatus(md.Meta, stored)

		if _, _, ok := res.Index.Find(md.Name); !ok {
			res.Added = append(res.Added, md.Name)
		}
		res.Index.Upsert(IndexEntry{Model: cfg.Model, Title: cfg.Title, Status: cfg.Status})
		res.Detail[md.Name] = cfg
		res.Models = append(res.Models, cfg)
	}
	return res
}

// статус: аннотация > сохранённый > unset
func resolveStatus(meta map[string]string, stored *ModelConfig) Status {
	if s := Status(strings.TrimSpace(meta["status"])); s.Valid() {
		return s
	}
	if stored != nil && stored.Status.Valid() {
		return stored.Status
	}
	return StatusUnset
}

func mergeModel(cfg *ModelConfig, md schema.ModelDescriptor, h *fieldtype.Heuristics) *ModelConfig {
	cfg.Model = md.Name
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = md.Name
		if t := strings.TrimSpace(md.Meta["title"]); t != "" {
			cfg.Title = t
		}
	}

	fields := make(map[string]bool, len(md.Fields))
	for _, f := range md.Fields {
		fields[f.Key] = true
	}

	// существующие колонки остаются как есть и в своём порядке, исчезнувшие ключи выкидываем
	kept := make(map[string]bool, len(cfg.Columns))
	cols := make([]ColumnConfig, 0, len(md.Fields))
	for _, c := range cfg.Columns {
		if !fields[c.Key] || kept[c.Key] {
			continue
		}
		kept[c.Key] = true
		cols = append(cols, c)
	}
	// новые ключи: в конец, с колонкой по умолчанию
	for _, f := range md.Fields {
		if !kept[f.Key] {
			cols = append(cols, DefaultColumn(f, h))
		}
	}
	cfg.Columns = cols

	if cfg.RowActions == nil {
		cfg.RowActions = DefaultRowActions()
	}
	if cfg.BulkActions == nil {
		cfg.BulkActions = DefaultBulkActions()
	}
	return cfg
}
