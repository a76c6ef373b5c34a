package sqlstore

import (
	"strings"

	"github.com/cockroachdb/errors"

	"crudadmin/internal/query"
	"crudadmin/internal/schema"
)

// stmt накапливает текст и параметры, нумеруя плейсхолдеры по диалекту.
type stmt struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func (s *stmt) write(parts ...string) *stmt {
	for _, p := range parts {
		s.sb.WriteString(p)
	}
	return s
}

func (s *stmt) arg(v any) *stmt {
	s.args = append(s.args, v)
	s.sb.WriteString(s.d.Placeholder(len(s.args)))
	return s
}

func (s *stmt) String() string { return s.sb.String() }

func (d Dialect) column(field string) (string, error) {
	if !schema.ValidIdentifier(field) {
		return "", errors.Newf("invalid column name %q", field)
	}
	return d.Quote(field), nil
}

// where дописывает WHERE по дизъюнкции условий; пустой предикат: без WHERE.
func (s *stmt) where(w query.Where) error {
	if w.IsEmpty() {
		return nil
	}
	s.write(" WHERE ")
	for i, t := range w.Or {
		if i > 0 {
			s.write(" OR ")
		}
		col, err := s.d.column(t.Field)
		if err != nil {
			return err
		}
		switch t.Op {
		case query.OpEquals:
			s.write(col, " = ").arg(t.Value)
		case query.OpContains:
			needle, _ := t.Value.(string)
			s.write(s.d.castText(col), " LIKE ").arg("%" + escapeLike(needle) + "%").write(" ", s.d.escape)
		default:
			return errors.Newf("unsupported operator %q", t.Op)
		}
	}
	return nil
}

// сначала поле сортировки, затем id, чтобы страницы были стабильными.
func (s *stmt) orderBy(ob query.OrderBy) error {
	field := ob.Field
	if field == "" {
		field = query.DefaultSortField
	}
	col, err := s.d.column(field)
	if err != nil {
		return err
	}
	dir := " ASC"
	if ob.Desc {
		dir = " DESC"
	}
	s.write(" ORDER BY ", col, dir)
	if field != schema.FieldID {
		s.write(", ", s.d.Quote(schema.FieldID), dir)
	}
	return nil
}

func (s *stmt) page(skip, take int) {
	if take <= 0 {
		if skip <= 0 {
			return
		}
		// OFFSET без LIMIT есть не везде
		take = 1<<31 - 1
	}
	s.write(" LIMIT ").arg(take)
	if skip > 0 {
		s.write(" OFFSET ").arg(skip)
	}
}
