package reference

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudadmin/internal/crudconfig"
	"crudadmin/internal/fieldtype"
	"crudadmin/internal/validation"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "levels.yaml", `
items:
  - {code: high, name: High, order: 2}
  - {code: low, name: Low, order: 1}
  - {code: legacy, name: Legacy, order: 3, valid_to: "2020-12-31"}
`)
	writeFile(t, dir, "doc.yml", `
name: documentTypes
title: Document types
items:
  - {code: CC, name: Cédula}
  - {code: NIT, name: NIT, valid_from: "2030-01-01"}
`)
	writeFile(t, dir, "notes.txt", "ignored")

	c, err := Load(dir)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	assert.Equal(t, 2, c.Len())

	codes, ok := c.Codes("levels")
	require.True(t, ok)
	assert.Equal(t, []string{"low", "high"}, codes)

	codes, ok = c.Codes("documentTypes")
	require.True(t, ok)
	assert.Equal(t, []string{"CC"}, codes)

	_, ok = c.Codes("missing")
	assert.False(t, ok)

	cat, ok := c.Get("documentTypes")
	require.True(t, ok)
	assert.Equal(t, "Document types", cat.Title)
	assert.Equal(t, []string{"documentTypes", "levels"}, []string{c.List()[0].Name, c.List()[1].Name})
}

func TestLoadOptionalAndBroken(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, c.Len())

	c, err = Load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Zero(t, c.Len())

	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "items: [")
	_, err = Load(dir)
	assert.Error(t, err)

	dir = t.TempDir()
	writeFile(t, dir, "a.yaml", "name: same\nitems: []\n")
	writeFile(t, dir, "b.yaml", "name: same\nitems: []\n")
	_, err = Load(dir)
	assert.ErrorContains(t, err, "duplicate catalog")
}

func TestCatalogsFeedValidation(t *testing.T) {
	c := New(Catalog{Name: "levels", Items: []Item{{Code: "low"}, {Code: "high"}}})
	col := crudconfig.ColumnConfig{Key: "level", Title: "Level", UIType: fieldtype.Badge, Catalog: "levels"}
	v := validation.Compile(&crudconfig.ModelConfig{Columns: []crudconfig.ColumnConfig{col}}, validation.WithCatalogs(c))

	_, errs := v.Validate(map[string]any{"level": "low"})
	assert.Empty(t, errs)
	_, errs = v.Validate(map[string]any{"level": "mid"})
	require.Len(t, errs, 1)
	assert.Equal(t, validation.ErrInvalidOption, errs[0].Code)
}
