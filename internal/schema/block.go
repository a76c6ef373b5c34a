package schema

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	modelHeaderRe = regexp.MustCompile(`^[ \t]*model[ \t]+([A-Za-z_]\w*)[ \t]*\{`)
	identRe       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// FieldLine описывает одну строку поля внутри блока модели (имя, токен типа, атрибуты).
type FieldLine struct {
	Name    string
	Type    string
	Attrs   []string
	Comment string   // хвостовой комментарий вместе с "//"
	Doc     []string // комментарии-строки над полем
	Raw     string   // исходный текст строки (trim)
}

func (f FieldLine) Optional() bool { return strings.HasSuffix(f.Type, "?") }

func (f FieldLine) List() bool {
	return strings.HasSuffix(strings.TrimSuffix(f.Type, "?"), "[]")
}

func (f FieldLine) HasUnique() bool {
	for _, a := range f.Attrs {
		if a == "@unique" || strings.HasPrefix(a, "@unique(") {
			return true
		}
	}
	return false
}

// String собирает строку заново: `name type attr attr // comment`.
func (f FieldLine) String() string {
	parts := []string{f.Name, f.Type}
	parts = append(parts, f.Attrs...)
	if f.Comment != "" {
		parts = append(parts, f.Comment)
	}
	return strings.Join(parts, " ")
}

// Block: блок `model X { ... }` и его разобранное тело.
type Block struct {
	Name       string
	Start      int // начало строки заголовка
	End        int // позиция сразу после закрывающей }
	Fields     []FieldLine
	Directives []string // @@-директивы (и комментарии перед ними) в исходном порядке
	Tail       []string // комментарии после последнего элемента
}

func (b *Block) Field(name string) (FieldLine, bool) {
	for _, f := range b.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLine{}, false
}

type srcLine struct {
	text string
	off  int
}

func splitLines(src string) []srcLine {
	var out []srcLine
	off := 0
	for {
		i := strings.IndexByte(src[off:], '\n')
		if i < 0 {
			out = append(out, srcLine{text: src[off:], off: off})
			return out
		}
		out = append(out, srcLine{text: src[off : off+i], off: off})
		off += i + 1
	}
}

// FindBlock находит блок модели по имени; nil без ошибки: блока нет.
func FindBlock(src, model string) (*Block, error) {
	for _, ln := range splitLines(src) {
		m := modelHeaderRe.FindStringSubmatch(ln.text)
		if m == nil || m[1] != model {
			continue
		}
		return readBlock(src, ln, m[1])
	}
	return nil, nil
}

func readBlock(src string, header srcLine, name string) (*Block, error) {
	open := header.off + strings.IndexByte(header.text, '{')
	closeAt, err := matchBrace(src, open)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", name)
	}
	b := &Block{Name: name, Start: header.off, End: closeAt + 1}
	parseBody(b, src[open+1:closeAt])
	return b, nil
}

// matchBrace ищет парную } с учётом вложенности, строк в кавычках и // комментариев.
func matchBrace(src string, open int) (int, error) {
	depth := 0
	inString, inComment := false, false
	for i := open; i < len(src); i++ {
		c := src[i]
		switch {
		case inComment:
			if c == '\n' {
				inComment = false
			}
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			inComment = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, errors.New("unbalanced braces")
}

func parseBody(b *Block, body string) {
	var pending []string
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "//"):
			pending = append(pending, line)
		case strings.HasPrefix(line, "@@"):
			b.Directives = append(b.Directives, pending...)
			b.Directives = append(b.Directives, line)
			pending = nil
		default:
			f, ok := parseFieldLine(line)
			if !ok {
				// строка без типа: сохраняем как есть, чтобы не потерять при перезаписи
				b.Tail = append(b.Tail, pending...)
				b.Tail = append(b.Tail, line)
				pending = nil
				continue
			}
			f.Doc = pending
			pending = nil
			b.Fields = append(b.Fields, f)
		}
	}
	b.Tail = append(b.Tail, pending...)
}

func parseFieldLine(line string) (FieldLine, bool) {
	tokens, comment := splitAttrTokens(line)
	if len(tokens) < 2 {
		return FieldLine{}, false
	}
	return FieldLine{
		Name:    tokens[0],
		Type:    tokens[1],
		Attrs:   tokens[2:],
		Comment: comment,
		Raw:     line,
	}, true
}

// splitAttrTokens делит строку поля по пробелам, не разрывая "..." и (...)/[...];
// хвостовой // комментарий возвращается отдельно.
func splitAttrTokens(s string) (tokens []string, comment string) {
	var buf []byte
	inString := false
	depth := 0
	flush := func() {
		if len(buf) > 0 {
			tokens = append(tokens, string(buf))
			buf = buf[:0]
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			buf = append(buf, c)
			if c == '\\' && i+1 < len(s) {
				i++
				buf = append(buf, s[i])
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			buf = append(buf, c)
		case c == '(' || c == '[':
			depth++
			buf = append(buf, c)
		case (c == ')' || c == ']') && depth > 0:
			depth--
			buf = append(buf, c)
		case c == '/' && depth == 0 && i+1 < len(s) && s[i+1] == '/':
			flush()
			return tokens, strings.TrimSpace(s[i:])
		case (c == ' ' || c == '\t') && depth == 0:
			flush()
		default:
			buf = append(buf, c)
		}
	}
	flush()
	return tokens, ""
}
