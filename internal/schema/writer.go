package schema

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"crudadmin/internal/fieldtype"
)

// Строки служебных полей, если в блоке их ещё нет.
var structuralDefaults = []struct{ name, line string }{
	{FieldID, "id String @id @default(cuid())"},
	{FieldCreatedAt, "createdAt DateTime @default(now())"},
	{FieldUpdatedAt, "updatedAt DateTime @updatedAt"},
}

const DefaultAnnotation = "/// @crud"

// ManagedField: поле, которым управляет конфиг колонки.
type ManagedField struct {
	Key      string
	Token    string // скалярный токен по UI-типу (Int, Decimal, String, ...)
	Required bool
	Unique   bool
}

type ModelSpec struct {
	Name   string
	Fields []ManagedField
	// Annotation пишется над новым блоком при дописывании в конец файла.
	Annotation string
}

type RewriteResult struct {
	Source   string
	Appended bool
	Warnings []string
}

// RewriteModel перестраивает блок модели под конфиг: управляемые поля
// пересобираются, служебные и неуправляемые сохраняются. Повторный вызов
// на результате ничего не меняет.
func RewriteModel(src string, spec ModelSpec) (RewriteResult, error) {
	var res RewriteResult
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return res, errors.New("empty model name")
	}
	if !ValidIdentifier(name) {
		return res, errors.Newf("invalid model name %q", name)
	}

	blk, err := FindBlock(src, name)
	if err != nil {
		return res, err
	}
	if blk == nil {
		blk = &Block{Name: name}
	}

	// 1) управляемые поля: в порядке колонок
	managed := map[string]bool{}
	var fieldLines []string
	for _, mf := range spec.Fields {
		key := strings.TrimSpace(mf.Key)
		switch {
		case IsStructural(key):
			continue
		case !ValidIdentifier(key):
			res.Warnings = append(res.Warnings, fmt.Sprintf("skip column %q: not a valid field name", mf.Key))
			continue
		case managed[key]:
			res.Warnings = append(res.Warnings, fmt.Sprintf("skip duplicate column %q", key))
			continue
		}
		managed[key] = true

		prev, had := blk.Field(key)
		line, warn := composeManaged(mf, prev, had)
		if warn != "" {
			res.Warnings = append(res.Warnings, warn)
		}
		fieldLines = append(fieldLines, withDoc(prev.Doc, line)...)
	}

	// 2) id, управляемые, createdAt, updatedAt, затем неуправляемые
	var body []string
	body = append(body, structuralLine(blk, FieldID)...)
	body = append(body, fieldLines...)
	body = append(body, structuralLine(blk, FieldCreatedAt)...)
	body = append(body, structuralLine(blk, FieldUpdatedAt)...)
	for _, f := range blk.Fields {
		if managed[f.Name] || IsStructural(f.Name) {
			continue
		}
		body = append(body, withDoc(f.Doc, f.Raw)...)
	}
	if len(blk.Directives) > 0 {
		body = append(body, "")
		body = append(body, blk.Directives...)
	}
	body = append(body, blk.Tail...)

	text := serializeBlock(name, body)

	// 3) замена на месте или дописывание в конец
	if blk.End > 0 {
		res.Source = src[:blk.Start] + text + src[blk.End:]
		return res, nil
	}
	if spec.Annotation != "" {
		text = spec.Annotation + "\n" + text
	}
	trimmed := strings.TrimRight(src, " \t\r\n")
	if trimmed == "" {
		res.Source = text + "\n"
	} else {
		res.Source = trimmed + "\n\n" + text + "\n"
	}
	res.Appended = true
	return res, nil
}

// composeManaged собирает строку поля по колонке. Скалярный тип уже
// существующего поля не меняется: при смене семейства строка остаётся прежней.
func composeManaged(mf ManagedField, prev FieldLine, had bool) (string, string) {
	token := fieldtype.BaseToken(mf.Token)
	if token == "" {
		token = "String"
	}
	list := false
	if had {
		prevBase := fieldtype.BaseToken(prev.Type)
		if fieldtype.ScalarFromToken(prevBase) != fieldtype.ScalarFromToken(token) {
			return prev.Raw, fmt.Sprintf("keep field %q as %s: type %s belongs to another family", mf.Key, prev.Type, token)
		}
		// то же семейство: оставляем исходный токен (Float, BigInt, ...)
		token = prevBase
		list = prev.List()
	}

	typ := token
	switch {
	case list:
		typ += "[]"
	case !mf.Required:
		typ += "?"
	}

	var attrs []string
	uniqueTok := "@unique"
	for _, a := range prev.Attrs {
		if a == "@unique" || strings.HasPrefix(a, "@unique(") {
			uniqueTok = a
			continue
		}
		attrs = append(attrs, a)
	}
	if mf.Unique {
		attrs = append([]string{uniqueTok}, attrs...)
	}

	line := FieldLine{Name: mf.Key, Type: typ, Attrs: attrs, Comment: prev.Comment}
	return line.String(), ""
}

func structuralLine(blk *Block, name string) []string {
	if f, ok := blk.Field(name); ok {
		return withDoc(f.Doc, f.Raw)
	}
	for _, d := range structuralDefaults {
		if d.name == name {
			return []string{d.line}
		}
	}
	return nil
}

func withDoc(doc []string, line string) []string {
	out := make([]string, 0, len(doc)+1)
	out = append(out, doc...)
	return append(out, line)
}

func serializeBlock(name string, lines []string) string {
	var sb strings.Builder
	sb.WriteString("model ")
	sb.WriteString(name)
	sb.WriteString(" {\n")
	for _, l := range lines {
		if l == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString("  ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}
