package schema

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudadmin/internal/fieldtype"
)

const sample = `generator client {
  provider = "prisma-client-js"
}

/// Клиенты
/// @crud(status: parametrized, title: 'Clientes')
model Customer {
  id        String   @id @default(cuid())
  name      String
  email     String   @unique
  age       Int?
  // internal note
  @@index([name])
  createdAt DateTime @default(now())
  updatedAt DateTime @updatedAt
}

model Plain {
  id String @id
}

model CrudProduct {
  id     String  @id
  price  Decimal @db.Decimal(10, 2)
  active Boolean // flag
  tags   String[]
}
`

func TestDiscover(t *testing.T) {
	models, err := Discover(sample, DiscoverOptions{})
	require.NoError(t, err)
	require.Len(t, models, 2)

	c := models[0]
	assert.Equal(t, "Customer", c.Name)
	assert.Equal(t, map[string]string{"status": "parametrized", "title": "Clientes"}, c.Meta)
	require.Len(t, c.Fields, 3)
	assert.Equal(t, FieldDescriptor{Key: "name", Scalar: fieldtype.String, Required: true, TypeToken: "String"}, c.Fields[0])
	assert.Equal(t, "email", c.Fields[1].Key)
	assert.Equal(t, FieldDescriptor{Key: "age", Scalar: fieldtype.Number, Required: false, TypeToken: "Int?"}, c.Fields[2])

	p := models[1]
	assert.Equal(t, "CrudProduct", p.Name)
	assert.Empty(t, p.Meta)
	require.Len(t, p.Fields, 3)
	assert.Equal(t, fieldtype.Number, p.Fields[0].Scalar)
	assert.Equal(t, fieldtype.Boolean, p.Fields[1].Scalar)
	assert.True(t, p.Fields[2].List)

	f, ok := p.Field("active")
	require.True(t, ok)
	assert.True(t, f.Required)
}

func TestDiscoverAnnotationDoesNotLeakToNextModel(t *testing.T) {
	src := "/// @crud\nmodel A {\n  x String\n}\nmodel B {\n  y String\n}\n"
	models, err := Discover(src, DiscoverOptions{})
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "A", models[0].Name)
}

func TestDiscoverCustomPrefixAndEmptyModel(t *testing.T) {
	src := "model AdminThing {\n  id String @id\n}\n"
	models, err := Discover(src, DiscoverOptions{Prefix: "admin"})
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Empty(t, models[0].Fields)

	models, err = Discover(src, DiscoverOptions{})
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestDiscoverFailsAtomically(t *testing.T) {
	_, err := Discover("/// @crud\nmodel A {\n  x String\n", DiscoverOptions{})
	assert.Error(t, err)

	_, err = Discover("model CrudA {\n}\nmodel CrudA {\n}\n", DiscoverOptions{})
	assert.Error(t, err)
}

func TestRewriteModelAppendsAnnotatedBlock(t *testing.T) {
	src := "datasource db {\n  provider = \"sqlite\"\n}\n"
	res, err := RewriteModel(src, ModelSpec{
		Name: "Invoice",
		Fields: []ManagedField{
			{Key: "number", Token: "String", Required: true, Unique: true},
			{Key: "total", Token: "Decimal"},
			{Key: "id", Token: "String"},
		},
		Annotation: DefaultAnnotation,
	})
	require.NoError(t, err)
	assert.True(t, res.Appended)
	assert.Equal(t, src+"\n/// @crud\nmodel Invoice {\n"+
		"  id String @id @default(cuid())\n"+
		"  number String @unique\n"+
		"  total Decimal?\n"+
		"  createdAt DateTime @default(now())\n"+
		"  updatedAt DateTime @updatedAt\n"+
		"}\n", res.Source)

	models, err := Discover(res.Source, DiscoverOptions{})
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "Invoice", models[0].Name)
}

func TestRewriteModelReplacesInPlace(t *testing.T) {
	spec := ModelSpec{Name: "Customer", Fields: []ManagedField{
		{Key: "name", Token: "String", Required: true},
		{Key: "email", Token: "String", Required: true},
		{Key: "phone", Token: "String"},
	}}
	res, err := RewriteModel(sample, spec)
	require.NoError(t, err)
	assert.False(t, res.Appended)
	assert.Empty(t, res.Warnings)

	want := "model Customer {\n" +
		"  id        String   @id @default(cuid())\n" +
		"  name String\n" +
		"  email String\n" +
		"  phone String?\n" +
		"  createdAt DateTime @default(now())\n" +
		"  updatedAt DateTime @updatedAt\n" +
		"  age       Int?\n" +
		"\n" +
		"  // internal note\n" +
		"  @@index([name])\n" +
		"}"
	assert.Contains(t, res.Source, want)
	assert.Contains(t, res.Source, "/// @crud(status: parametrized, title: 'Clientes')\nmodel Customer {")
	assert.Contains(t, res.Source, "model Plain {\n  id String @id\n}")
	assert.Equal(t, 1, strings.Count(res.Source, "model Customer {"))

	again, err := RewriteModel(res.Source, spec)
	require.NoError(t, err)
	assert.Equal(t, res.Source, again.Source)
}

func TestRewriteModelKeepsTokenWithinFamily(t *testing.T) {
	spec := ModelSpec{Name: "CrudProduct", Fields: []ManagedField{
		{Key: "price", Token: "Int", Required: true, Unique: true},
		{Key: "active", Token: "String", Required: true},
		{Key: "tags", Token: "String"},
	}}
	res, err := RewriteModel(sample, spec)
	require.NoError(t, err)

	assert.Contains(t, res.Source, "  price Decimal @unique @db.Decimal(10, 2)\n")
	assert.Contains(t, res.Source, "  tags String[]\n")
	// Boolean -> String: строка поля не трогается
	assert.Contains(t, res.Source, "  active Boolean // flag\n")
	assert.NotContains(t, res.Source, "active String")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "active")

	again, err := RewriteModel(res.Source, spec)
	require.NoError(t, err)
	assert.Equal(t, res.Source, again.Source)
	assert.Len(t, again.Warnings, 1)
}

func TestRewriteModelErrors(t *testing.T) {
	_, err := RewriteModel(sample, ModelSpec{Name: " "})
	assert.Error(t, err)

	_, err = RewriteModel(sample, ModelSpec{Name: "Bad Name"})
	assert.Error(t, err)

	_, err = RewriteModel("model X {\n  a String\n", ModelSpec{Name: "X"})
	assert.Error(t, err)

	res, err := RewriteModel(sample, ModelSpec{Name: "Customer", Fields: []ManagedField{
		{Key: "bad key", Token: "String"},
		{Key: "name", Token: "String"},
		{Key: "name", Token: "String"},
	}})
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2)
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()
	src := NewFileSource(filepath.Join(t.TempDir(), "prisma", "schema.prisma"))

	_, err := src.Read(ctx)
	assert.Error(t, err)

	require.NoError(t, src.Write(ctx, sample))
	got, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, sample, got)
}
