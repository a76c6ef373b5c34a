package schema

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	DefaultCrudPrefix = "Crud"
	annotationWindow  = 5 // сколько строк над `model` просматриваем
)

var crudAnnotationRe = regexp.MustCompile(`(?i)^///\s*@crud(?:\s*\(([^)]*)\))?`)

type DiscoverOptions struct {
	// Prefix: имя модели с этим префиксом (без учёта регистра) считается CRUD-моделью.
	Prefix string
}

// Discover находит модели, помеченные `/// @crud(...)` или по префиксу имени,
// и возвращает их поля без служебных. Любая ошибка: вся операция неуспешна.
func Discover(src string, opts DiscoverOptions) ([]ModelDescriptor, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultCrudPrefix
	}

	lines := splitLines(src)
	seen := map[string]bool{}
	var out []ModelDescriptor

	for i, ln := range lines {
		m := modelHeaderRe.FindStringSubmatch(ln.text)
		if m == nil {
			continue
		}
		name := m[1]

		meta, annotated := findAnnotation(lines, i)
		if !annotated && !strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
			continue
		}
		if seen[name] {
			return nil, errors.Newf("duplicate model %q", name)
		}
		seen[name] = true

		blk, err := readBlock(src, ln, name)
		if err != nil {
			return nil, err
		}
		md := ModelDescriptor{Name: name, Meta: meta}
		for _, f := range blk.Fields {
			if IsStructural(f.Name) {
				continue
			}
			md.Fields = append(md.Fields, describe(f))
		}
		out = append(out, md)
	}
	return out, nil
}

// findAnnotation смотрит вверх не дальше annotationWindow строк, но только
// в пределах сплошного блока комментариев/пустых строк над заголовком:
// аннотация соседней модели сюда не попадает.
func findAnnotation(lines []srcLine, header int) (map[string]string, bool) {
	for j := header - 1; j >= 0 && j >= header-annotationWindow; j-- {
		t := strings.TrimSpace(lines[j].text)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "//") {
			return nil, false
		}
		if m := crudAnnotationRe.FindStringSubmatch(t); m != nil {
			return parseKeyValueList(m[1]), true
		}
	}
	return nil, false
}

// parseKeyValueList: "status: parametrized, title: 'Clientes'" → map; кавычки снимаются.
func parseKeyValueList(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range splitOutsideQuotes(s, ',') {
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			k, v, ok = strings.Cut(pair, "=")
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = unquote(v)
	}
	return out
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func splitOutsideQuotes(s string, sep rune) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	for _, r := range s {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case r == sep && !inSingle && !inDouble:
			out = append(out, string(buf))
			buf = buf[:0]
			continue
		}
		buf = append(buf, r)
	}
	out = append(out, string(buf))
	return out
}

// ValidIdentifier проверяет имя модели или поля.
func ValidIdentifier(s string) bool { return identRe.MatchString(s) }
