package crudconfig

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"crudadmin/internal/fieldtype"
	"crudadmin/internal/schema"
)

// Titleize делает первую букву ключа заглавной.
func Titleize(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}

// DefaultColumn строит колонку для нового ключа схемы.
func DefaultColumn(f schema.FieldDescriptor, h *fieldtype.Heuristics) ColumnConfig {
	return ColumnConfig{
		Key:        f.Key,
		Title:      Titleize(f.Key),
		UIType:     fieldtype.DefaultUIType(f.Scalar, f.Key, h),
		Sortable:   true,
		Filterable: true,
		Required:   f.Required,
		Unique:     f.Unique,
		Render:     RenderGridForm,
	}
}

func DefaultRowActions() []ActionConfig {
	return []ActionConfig{
		{ID: "view", Label: "View", Icon: "eye", Variant: "ghost", Action: "view"},
		{ID: "edit", Label: "Edit", Icon: "pencil", Variant: "ghost", Action: "edit"},
		{ID: "delete", Label: "Delete", Icon: "trash", Variant: "destructive", Action: "delete",
			ConfirmMessage: "Are you sure you want to delete this record?"},
	}
}

func DefaultBulkActions() []ActionConfig {
	return []ActionConfig{
		{ID: "export", Label: "Export CSV", Icon: "download", Variant: "outline", Action: "export"},
	}
}

// NewModelConfig: конфиг модели, которой ещё нет ни в одном уровне хранения.
func NewModelConfig(md schema.ModelDescriptor, h *fieldtype.Heuristics) *ModelConfig {
	cfg := &ModelConfig{
		Model:       md.Name,
		Title:       md.Name,
		Status:      StatusUnset,
		Columns:     make([]ColumnConfig, 0, len(md.Fields)),
		RowActions:  DefaultRowActions(),
		BulkActions: DefaultBulkActions(),
	}
	if t := strings.TrimSpace(md.Meta["title"]); t != "" {
		cfg.Title = t
	}
	for _, f := range md.Fields {
		cfg.Columns = append(cfg.Columns, DefaultColumn(f, h))
	}
	return cfg
}
