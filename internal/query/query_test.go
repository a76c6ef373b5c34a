package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudadmin/internal/crudconfig"
	"crudadmin/internal/fieldtype"
)

func columns() []crudconfig.ColumnConfig {
	return []crudconfig.ColumnConfig{
		{Key: "name", UIType: fieldtype.Text, Filterable: true},
		{Key: "price", UIType: fieldtype.Currency, Filterable: true},
		{Key: "qty", UIType: fieldtype.NumberUI, Filterable: true},
		{Key: "secret", UIType: fieldtype.Text, Filterable: false},
	}
}

func TestBuildWhere(t *testing.T) {
	tests := []struct {
		name   string
		search string
		want   []Term
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"text", "ana", []Term{
			{Field: "name", Op: OpContains, Value: "ana"},
			{Field: "price", Op: OpContains, Value: "ana"},
			{Field: "qty", Op: OpContains, Value: "ana"},
		}},
		{"numeric", "12.5", []Term{
			{Field: "name", Op: OpContains, Value: "12.5"},
			{Field: "price", Op: OpEquals, Value: 12.5},
			{Field: "qty", Op: OpEquals, Value: 12.5},
		}},
		{"infinity is text", "Inf", []Term{
			{Field: "name", Op: OpContains, Value: "Inf"},
			{Field: "price", Op: OpContains, Value: "Inf"},
			{Field: "qty", Op: OpContains, Value: "Inf"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Build(columns(), tt.search, "", "")
			assert.Equal(t, tt.want, q.Where.Or)
		})
	}
}

func TestBuildWhereWithoutFilterableColumns(t *testing.T) {
	q := Build([]crudconfig.ColumnConfig{{Key: "name", UIType: fieldtype.Text}}, "x", "", "")
	assert.True(t, q.Where.IsEmpty())
}

func TestBuildOrderBy(t *testing.T) {
	tests := []struct {
		sortBy, sortOrder string
		want              OrderBy
	}{
		{"", "", OrderBy{Field: "createdAt", Desc: true}},
		{"name", "asc", OrderBy{Field: "name", Desc: false}},
		{"name", "ASC", OrderBy{Field: "name", Desc: false}},
		{"name", "sideways", OrderBy{Field: "name", Desc: true}},
		{"unknown", "asc", OrderBy{Field: "createdAt", Desc: false}},
		{"secret", "", OrderBy{Field: "secret", Desc: true}},
		{"updatedAt", "asc", OrderBy{Field: "updatedAt", Desc: false}},
	}
	for _, tt := range tests {
		t.Run(tt.sortBy+"/"+tt.sortOrder, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(columns(), "", tt.sortBy, tt.sortOrder).OrderBy)
		})
	}
}

func TestWhereMatch(t *testing.T) {
	w := Build(columns(), "12", "", "").Where
	assert.True(t, w.Match(map[string]any{"price": 12.0}))
	assert.True(t, w.Match(map[string]any{"name": "item 12"}))
	assert.False(t, w.Match(map[string]any{"price": 120.0, "name": "x"}))
	assert.False(t, w.Match(map[string]any{"secret": "12"}))
	assert.True(t, Where{}.Match(map[string]any{}))

	w = Build(columns(), "Ana", "", "").Where
	assert.False(t, w.Match(map[string]any{"name": "ana"}), "containment is case-sensitive")
	assert.False(t, w.Match(map[string]any{"name": nil}))
}

func TestSort(t *testing.T) {
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.Add(time.Hour)
	recs := []map[string]any{
		{"id": "a", "qty": 10.0, "createdAt": d1},
		{"id": "b", "qty": nil, "createdAt": d2},
		{"id": "c", "qty": 2.0, "createdAt": d2},
	}
	ids := func() []string {
		out := make([]string, 0, len(recs))
		for _, r := range recs {
			out = append(out, r["id"].(string))
		}
		return out
	}

	Sort(recs, OrderBy{Field: "qty"})
	assert.Equal(t, []string{"c", "a", "b"}, ids())

	Sort(recs, OrderBy{Field: "qty", Desc: true})
	assert.Equal(t, []string{"a", "c", "b"}, ids(), "nulls stay last")

	Sort(recs, OrderBy{Field: "createdAt", Desc: true})
	require.Equal(t, "a", ids()[2])
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(2.0, 10.0))
	assert.Equal(t, 1, Compare("b", "a"))
	assert.Equal(t, -1, Compare(false, true))
	assert.Equal(t, 0, Compare(3, 3.0))
}
