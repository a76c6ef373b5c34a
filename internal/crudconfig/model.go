package crudconfig

import (
	"strings"

	"crudadmin/internal/fieldtype"
)

type Status string

const (
	StatusParametrized Status = "parametrized"
	StatusInactive     Status = "inactive"
	StatusUnset        Status = "unset"
)

func (s Status) Valid() bool {
	switch s {
	case StatusParametrized, StatusInactive, StatusUnset:
		return true
	}
	return false
}

// Render: где показывается колонка (таблица, форма или оба места).
type Render string

const (
	RenderGrid     Render = "grid"
	RenderForm     Render = "form"
	RenderGridForm Render = "grid-form"
)

type ColumnValidation struct {
	Required     *bool    `json:"required,omitempty"`
	MinLength    *int     `json:"minLength,omitempty"`
	MaxLength    *int     `json:"maxLength,omitempty"`
	Pattern      string   `json:"pattern,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	MaxDateToday bool     `json:"maxDateToday,omitempty"`
}

type ColumnConfig struct {
	Key        string            `json:"key"`
	Title      string            `json:"title"`
	UIType     fieldtype.UIType  `json:"type"`
	Sortable   bool              `json:"sortable"`
	Filterable bool              `json:"filterable"`
	Frozen     bool              `json:"frozen,omitempty"`
	Required   bool              `json:"required,omitempty"`
	Hidden     bool              `json:"hidden,omitempty"`
	Hideable   bool              `json:"hideable,omitempty"`
	Render     Render            `json:"render,omitempty"`
	Options    []string          `json:"options,omitempty"`
	Catalog    string            `json:"catalog,omitempty"` // справочник вместо inline options
	Unique     bool              `json:"unique,omitempty"`
	Validation *ColumnValidation `json:"validation,omitempty"`
	Width      int               `json:"width,omitempty"`
	Align      string            `json:"align,omitempty"`
}

// IsRequired: validation.required, если задан, иначе required колонки.
func (c ColumnConfig) IsRequired() bool {
	if c.Validation != nil && c.Validation.Required != nil {
		return *c.Validation.Required
	}
	return c.Required
}

// TitleOrKey возвращает заголовок для сообщений об ошибках.
func (c ColumnConfig) TitleOrKey() string {
	if strings.TrimSpace(c.Title) != "" {
		return c.Title
	}
	return c.Key
}

type ActionConfig struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	Icon           string `json:"icon,omitempty"`
	Variant        string `json:"variant,omitempty"`
	Action         string `json:"action"`
	ConfirmMessage string `json:"confirmMessage,omitempty"`
}

type RelationRef struct {
	Type       string `json:"type"` // belongsTo | hasMany | manyToMany
	Model      string `json:"model"`
	LocalKey   string `json:"localKey,omitempty"`
	ForeignKey string `json:"foreignKey,omitempty"`
}

type ModelConfig struct {
	Model       string         `json:"model"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      Status         `json:"status"`
	Columns     []ColumnConfig `json:"columns"`
	RowActions  []ActionConfig `json:"rowActions"`
	BulkActions []ActionConfig `json:"bulkActions"`
	Relations   []RelationRef  `json:"relations,omitempty"`
	ContainerID string         `json:"containerId,omitempty"`
}

func (m *ModelConfig) Column(key string) (ColumnConfig, int, bool) {
	for i, c := range m.Columns {
		if c.Key == key {
			return c, i, true
		}
	}
	return ColumnConfig{}, -1, false
}

// GridColumns: колонки, видимые в таблице (render grid|grid-form|пусто, не hidden).
func (m *ModelConfig) GridColumns() []ColumnConfig {
	out := make([]ColumnConfig, 0, len(m.Columns))
	for _, c := range m.Columns {
		if c.Hidden || c.Render == RenderForm {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Clone делает глубокую копию.
func (m *ModelConfig) Clone() *ModelConfig {
	if m == nil {
		return nil
	}
	out := *m
	out.Columns = make([]ColumnConfig, len(m.Columns))
	for i, c := range m.Columns {
		out.Columns[i] = c.clone()
	}
	out.RowActions = cloneSlice(m.RowActions)
	out.BulkActions = cloneSlice(m.BulkActions)
	out.Relations = cloneSlice(m.Relations)
	return &out
}

// cloneSlice сохраняет различие nil / пустой слайс (в JSON это null и []).
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func (c ColumnConfig) clone() ColumnConfig {
	out := c
	out.Options = cloneSlice(c.Options)
	if c.Validation != nil {
		v := *c.Validation
		out.Validation = &v
	}
	return out
}

type IndexEntry struct {
	Model  string `json:"model"`
	Title  string `json:"title"`
	Status Status `json:"status"`
}

type Index struct {
	Models []IndexEntry `json:"models"`
}

func (ix Index) Find(model string) (IndexEntry, int, bool) {
	for i, e := range ix.Models {
		if e.Model == model {
			return e, i, true
		}
	}
	return IndexEntry{}, -1, false
}

// Upsert обновляет запись или добавляет её в конец.
func (ix *Index) Upsert(e IndexEntry) {
	if _, i, ok := ix.Find(e.Model); ok {
		ix.Models[i] = e
		return
	}
	ix.Models = append(ix.Models, e)
}

// Detail: устаревший общий файл вида { "<Model>": ModelConfig }.
type Detail map[string]*ModelConfig
