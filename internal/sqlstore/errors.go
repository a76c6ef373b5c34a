package sqlstore

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"crudadmin/internal/records"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFailedOn = "UNIQUE constraint failed: "
)

var (
	pgKeyDetailRe   = regexp.MustCompile(`Key \(([^)]+)\)=`)
	mysqlDupKeyRe   = regexp.MustCompile(`for key '([^']+)'`)
	constraintColRe = regexp.MustCompile(`_([A-Za-z][A-Za-z0-9]*)_key$`)
)

// translate: нарушения уникальности → *records.UniqueViolation, остальное оборачивается.
func translate(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if field, ok := uniqueField(err); ok {
		return &records.UniqueViolation{Field: field, Err: err}
	}
	return errors.Wrapf(err, format, args...)
}

// uniqueField определяет, что ошибка: нарушение уникальности, и по возможности
// достаёт имя колонки из деталей драйвера.
func uniqueField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		if pgErr.ColumnName != "" {
			return pgErr.ColumnName, true
		}
		if m := pgKeyDetailRe.FindStringSubmatch(pgErr.Detail); m != nil && !strings.Contains(m[1], ",") {
			return strings.Trim(m[1], `"`), true
		}
		if m := constraintColRe.FindStringSubmatch(pgErr.ConstraintName); m != nil {
			return m[1], true
		}
		return "", true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number != mysqlDuplicateEntry {
			return "", false
		}
		if m := mysqlDupKeyRe.FindStringSubmatch(myErr.Message); m != nil {
			key := m[1]
			// MySQL 8: "<table>.<index>"
			if i := strings.LastIndex(key, "."); i >= 0 {
				key = key[i+1:]
			}
			if cm := constraintColRe.FindStringSubmatch(key); cm != nil {
				return cm[1], true
			}
			return key, true
		}
		return "", true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		unique := code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), sqliteUniqueFailedOn))
		if !unique {
			return "", false
		}
		return sqliteColumn(liteErr.Error()), true
	}
	return "", false
}

// sqliteColumn: "UNIQUE constraint failed: Table.col" → col (для составных ключей пусто).
func sqliteColumn(msg string) string {
	i := strings.Index(msg, sqliteUniqueFailedOn)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(sqliteUniqueFailedOn):]
	if j := strings.IndexAny(rest, " ("); j >= 0 {
		rest = rest[:j]
	}
	if strings.Contains(rest, ",") {
		return ""
	}
	if k := strings.LastIndex(rest, "."); k >= 0 {
		rest = rest[k+1:]
	}
	return rest
}
