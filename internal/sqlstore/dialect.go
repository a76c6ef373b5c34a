package sqlstore

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Dialect: различия SQL между поддерживаемыми движками.
type Dialect struct {
	Name   string // postgres | mysql | sqlite
	Driver string // имя драйвера database/sql
	quote  string
	dollar bool   // плейсхолдеры $1, $2 вместо ?
	text   string // тип для CAST(... AS ...) при поиске по вхождению
	escape string // ESCAPE-клауза для LIKE
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "pgx", quote: `"`, dollar: true, text: "TEXT", escape: `ESCAPE '\'`}
	MySQL    = Dialect{Name: "mysql", Driver: "mysql", quote: "`", text: "CHAR", escape: `ESCAPE '\\'`}
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite", quote: `"`, text: "TEXT", escape: `ESCAPE '\'`}
)

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, errors.Newf("unsupported sql dialect %q", name)
}

// Quote экранирует идентификатор; регистр сохраняется (модели Prisma в CamelCase).
func (d Dialect) Quote(ident string) string {
	return d.quote + strings.ReplaceAll(ident, d.quote, d.quote+d.quote) + d.quote
}

// Placeholder рендерит n-й параметр запроса (с единицы).
func (d Dialect) Placeholder(n int) string {
	if d.dollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d Dialect) castText(expr string) string {
	return "CAST(" + expr + " AS " + d.text + ")"
}

// escapeLike экранирует служебные символы LIKE обратным слэшем.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
