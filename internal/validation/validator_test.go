package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudadmin/internal/crudconfig"
	"crudadmin/internal/fieldtype"
)

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func boolPtr(b bool) *bool { return &b }

func col(key string, ui fieldtype.UIType) crudconfig.ColumnConfig {
	return crudconfig.ColumnConfig{Key: key, Title: crudconfig.Titleize(key), UIType: ui}
}

type staticCatalogs map[string][]string

func (s staticCatalogs) Codes(name string) ([]string, bool) {
	c, ok := s[name]
	return c, ok
}

func codes(errs []FieldError) map[string]string {
	out := map[string]string{}
	for _, e := range errs {
		out[e.Field] = e.Code
	}
	return out
}

func TestValidateAggregatesAllErrors(t *testing.T) {
	name := col("name", fieldtype.Text)
	name.Required = true
	email := col("email", fieldtype.Email)
	age := col("age", fieldtype.NumberUI)
	age.Validation = &crudconfig.ColumnValidation{Min: floatPtr(0), Max: floatPtr(120)}

	v := Compile(&crudconfig.ModelConfig{Columns: []crudconfig.ColumnConfig{name, email, age}})
	_, errs := v.Validate(map[string]any{"email": "bad", "age": "abc"})

	require.Len(t, errs, 3)
	assert.Equal(t, map[string]string{
		"name":  ErrRequired,
		"email": ErrInvalidEmail,
		"age":   ErrTypeMismatch,
	}, codes(errs))
	assert.Equal(t, "Name is required", errs[0].Message)
}

func TestValidateNormalizes(t *testing.T) {
	active := col("active", fieldtype.Bool)
	price := col("price", fieldtype.Currency)
	born := col("born", fieldtype.Date)
	note := col("note", fieldtype.Text)
	unknown := col("rating", fieldtype.UIType("stars"))

	v := Compile(&crudconfig.ModelConfig{Columns: []crudconfig.ColumnConfig{
		active, price, born, note, unknown, col("id", fieldtype.Text),
	}})
	out, errs := v.Validate(map[string]any{
		"active": "false",
		"price":  "19.90",
		"born":   "1990-05-01",
		"note":   "",
		"rating": 4,
		"id":     "client-supplied",
		"extra":  "dropped",
	})
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{
		"active": false,
		"price":  19.9,
		"born":   time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
		"note":   nil,
		"rating": 4,
	}, out)
}

func TestValidateTextRules(t *testing.T) {
	code := col("code", fieldtype.Text)
	code.Validation = &crudconfig.ColumnValidation{MinLength: intPtr(2), MaxLength: intPtr(4), Pattern: `^[A-Z]+$`}
	phone := col("phone", fieldtype.Text)
	doc := col("documentNumber", fieldtype.Text)
	broken := col("broken", fieldtype.Text)
	broken.Validation = &crudconfig.ColumnValidation{Pattern: "("}
	// явный pattern перекрывает эвристику телефона
	tel := col("telephone", fieldtype.Text)
	tel.Validation = &crudconfig.ColumnValidation{Pattern: `^\+\d+$`}
	hotel := col("hotelName", fieldtype.Text)

	v := Compile(&crudconfig.ModelConfig{Columns: []crudconfig.ColumnConfig{code, phone, doc, broken, tel, hotel}})

	tests := []struct {
		name  string
		input map[string]any
		want  map[string]string
	}{
		{"valid", map[string]any{"code": "AB", "phone": "3001234567", "documentNumber": "123456", "telephone": "+57300"}, map[string]string{}},
		{"too short", map[string]any{"code": "A"}, map[string]string{"code": ErrTooShort}},
		{"too long", map[string]any{"code": "ABCDE"}, map[string]string{"code": ErrTooLong}},
		{"pattern", map[string]any{"code": "ab"}, map[string]string{"code": ErrPattern}},
		{"phone heuristic", map[string]any{"phone": "12-34"}, map[string]string{"phone": ErrPattern}},
		{"document heuristic", map[string]any{"documentNumber": "12a45"}, map[string]string{"documentNumber": ErrPattern}},
		{"no phone heuristic for hotelName", map[string]any{"hotelName": "Hilton Bogota"}, map[string]string{}},
		{"explicit pattern wins", map[string]any{"telephone": "3001234567"}, map[string]string{"telephone": ErrPattern}},
		{"bad configured pattern", map[string]any{"broken": "x"}, map[string]string{"broken": ErrInvalidPattern}},
		{"not a string", map[string]any{"code": 12.0}, map[string]string{"code": ErrTypeMismatch}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := v.Validate(tt.input)
			assert.Equal(t, tt.want, codes(errs))
		})
	}
}

func TestValidateNumberBoundsAndBoolean(t *testing.T) {
	qty := col("qty", fieldtype.NumberUI)
	qty.Validation = &crudconfig.ColumnValidation{Min: floatPtr(1), Max: floatPtr(10)}
	flag := col("flag", fieldtype.Bool)
	flag.Validation = &crudconfig.ColumnValidation{Required: boolPtr(true)}

	v := Compile(&crudconfig.ModelConfig{Columns: []crudconfig.ColumnConfig{qty, flag}})

	_, errs := v.Validate(map[string]any{"qty": 0.0, "flag": "maybe"})
	assert.Equal(t, map[string]string{"qty": ErrMin, "flag": ErrTypeMismatch}, codes(errs))

	_, errs = v.Validate(map[string]any{"qty": "11"})
	assert.Equal(t, map[string]string{"qty": ErrMax, "flag": ErrRequired}, codes(errs))

	out, errs := v.Validate(map[string]any{"qty": 5, "flag": false})
	require.Empty(t, errs)
	assert.Equal(t, 5.0, out["qty"])
	assert.Equal(t, false, out["flag"], "false is a present value")
}

func TestValidateRequiredOverride(t *testing.T) {
	c := col("name", fieldtype.Text)
	c.Required = true
	c.Validation = &crudconfig.ColumnValidation{Required: boolPtr(false)}
	v := Compile(&crudconfig.ModelConfig{Columns: []crudconfig.ColumnConfig{c}})
	out, errs := v.Validate(map[string]any{})
	assert.Empty(t, errs)
	assert.Empty(t, out)
}

func TestValidateDate(t *testing.T) {
	born := col("born", fieldtype.Date)
	born.Validation = &crudconfig.ColumnValidation{MaxDateToday: true}
	now := func() time.Time { return time.Date(2024, 6, 15, 23, 0, 0, 0, time.UTC) }
	v := Compile(&crudconfig.ModelConfig{Columns: []crudconfig.ColumnConfig{born}}, WithClock(now))

	_, errs := v.Validate(map[string]any{"born": "2024-06-15"})
	assert.Empty(t, errs, "today is allowed")

	_, errs = v.Validate(map[string]any{"born": "2024-06-16"})
	assert.Equal(t, map[string]string{"born": ErrFutureDate}, codes(errs))

	_, errs = v.Validate(map[string]any{"born": "15/06/2024"})
	assert.Equal(t, map[string]string{"born": ErrTypeMismatch}, codes(errs))
}

func TestValidateOptions(t *testing.T) {
	status := col("status", fieldtype.Select)
	status.Options = []string{"open", "closed"}
	level := col("level", fieldtype.Badge)
	level.Catalog = "levels"
	free := col("free", fieldtype.Select)

	v := Compile(&crudconfig.ModelConfig{Columns: []crudconfig.ColumnConfig{status, level, free}},
		WithCatalogs(staticCatalogs{"levels": {"low", "high"}}))

	_, errs := v.Validate(map[string]any{"status": "open", "level": "high", "free": "anything"})
	assert.Empty(t, errs)

	_, errs = v.Validate(map[string]any{"status": "pending", "level": "mid"})
	assert.Equal(t, map[string]string{"status": ErrInvalidOption, "level": ErrInvalidOption}, codes(errs))
}

func TestCoerceForLookup(t *testing.T) {
	v := Compile(&crudconfig.ModelConfig{Columns: []crudconfig.ColumnConfig{
		col("age", fieldtype.NumberUI), col("email", fieldtype.Email),
	}})
	got, ok := v.Coerce("age", "42")
	require.True(t, ok)
	assert.Equal(t, 42.0, got)

	got, ok = v.Coerce("age", "x")
	require.True(t, ok)
	assert.Equal(t, "x", got, "uncoercible values are passed through")

	_, ok = v.Coerce("missing", "x")
	assert.False(t, ok)
	assert.True(t, v.Has("email"))
	assert.False(t, v.Has("id"))
}

func TestCompileWithHeuristicsOverride(t *testing.T) {
	h := fieldtype.DefaultHeuristics()
	h.Rules = nil
	v := Compile(&crudconfig.ModelConfig{Columns: []crudconfig.ColumnConfig{col("phone", fieldtype.Text)}}, WithHeuristics(h))
	_, errs := v.Validate(map[string]any{"phone": "abc"})
	assert.Empty(t, errs)
}
