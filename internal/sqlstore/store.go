package sqlstore

import (
	"context"
	"database/sql"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/go-sql-driver/mysql" // driver: mysql
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/oklog/ulid/v2"
	"github.com/shopmonkeyus/go-common/logger"
	_ "modernc.org/sqlite" // driver: sqlite

	"crudadmin/internal/records"
	"crudadmin/internal/schema"
)

// Open подключается к базе и проверяет соединение.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, Dialect{}, errors.Wrapf(err, "open %s", d.Name)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, errors.Wrapf(err, "ping %s", d.Name)
	}
	return db, d, nil
}

// Store отдаёт репозитории записей поверх database/sql; таблица = имя модели,
// колонки = ключи конфига. Схему базы Store не создаёт и не меняет.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  logger.Logger

	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func New(db *sql.DB, d Dialect, log logger.Logger) *Store {
	return &Store{
		db:      db,
		dialect: d,
		logger:  log.WithPrefix("[sql]"),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:     time.Now,
	}
}

func (s *Store) Repository(model string) (records.Repository, error) {
	if !schema.ValidIdentifier(model) {
		return nil, errors.Newf("invalid model name %q", model)
	}
	return &Repository{store: s, d: s.dialect, table: s.dialect.Quote(model)}, nil
}

func (s *Store) newID(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

type Repository struct {
	store *Store
	d     Dialect
	table string
}

var _ records.Repository = (*Repository)(nil)

func (r *Repository) stmt() *stmt { return &stmt{d: r.d} }

func (r *Repository) List(ctx context.Context, p records.ListParams) (records.Page, error) {
	count := r.stmt().write("SELECT COUNT(*) FROM ", r.table)
	if err := count.where(p.Where); err != nil {
		return records.Page{}, err
	}
	var total int
	if err := r.store.db.QueryRowContext(ctx, count.String(), count.args...).Scan(&total); err != nil {
		return records.Page{}, errors.Wrapf(err, "count %s", r.table)
	}

	sel := r.stmt().write("SELECT * FROM ", r.table)
	if err := sel.where(p.Where); err != nil {
		return records.Page{}, err
	}
	if err := sel.orderBy(p.OrderBy); err != nil {
		return records.Page{}, err
	}
	sel.page(p.Skip, p.Take)
	r.store.logger.Trace("%s %v", sel, sel.args)

	rows, err := r.store.db.QueryContext(ctx, sel.String(), sel.args...)
	if err != nil {
		return records.Page{}, errors.Wrapf(err, "list %s", r.table)
	}
	items, err := scanRecords(rows)
	if err != nil {
		return records.Page{}, errors.Wrapf(err, "scan %s", r.table)
	}
	return records.Page{Items: items, Total: total}, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (records.Record, error) {
	q := r.stmt().write("SELECT * FROM ", r.table, " WHERE ", r.d.Quote(schema.FieldID), " = ").arg(id)
	rows, err := r.store.db.QueryContext(ctx, q.String(), q.args...)
	if err != nil {
		return nil, errors.Wrapf(err, "find %s", r.table)
	}
	items, err := scanRecords(rows)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", r.table)
	}
	if len(items) == 0 {
		return nil, records.ErrNotFound
	}
	return items[0], nil
}

func (r *Repository) Create(ctx context.Context, data records.Record) (records.Record, error) {
	now := r.store.now().UTC()
	rec := make(records.Record, len(data)+3)
	for k, v := range data {
		if !schema.IsStructural(k) {
			rec[k] = v
		}
	}
	rec[schema.FieldID] = r.store.newID(now)
	rec[schema.FieldCreatedAt] = now
	rec[schema.FieldUpdatedAt] = now

	keys := records.SortedKeys(rec)
	q := r.stmt().write("INSERT INTO ", r.table, " (")
	for i, k := range keys {
		col, err := r.d.column(k)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			q.write(", ")
		}
		q.write(col)
	}
	q.write(") VALUES (")
	for i, k := range keys {
		if i > 0 {
			q.write(", ")
		}
		q.arg(rec[k])
	}
	q.write(")")

	if _, err := r.store.db.ExecContext(ctx, q.String(), q.args...); err != nil {
		return nil, translate(err, "insert into %s", r.table)
	}
	return rec, nil
}

func (r *Repository) Update(ctx context.Context, id string, data records.Record) (records.Record, error) {
	q := r.stmt().write("UPDATE ", r.table, " SET ")
	for _, k := range records.SortedKeys(data) {
		if schema.IsStructural(k) {
			continue
		}
		col, err := r.d.column(k)
		if err != nil {
			return nil, err
		}
		q.write(col, " = ").arg(data[k]).write(", ")
	}
	q.write(r.d.Quote(schema.FieldUpdatedAt), " = ").arg(r.store.now().UTC())
	q.write(" WHERE ", r.d.Quote(schema.FieldID), " = ").arg(id)

	// RowsAffected в MySQL не считает строки без изменений, поэтому наличие проверяется чтением
	if _, err := r.store.db.ExecContext(ctx, q.String(), q.args...); err != nil {
		return nil, translate(err, "update %s", r.table)
	}
	return r.FindByID(ctx, id)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	q := r.stmt().write("DELETE FROM ", r.table, " WHERE ", r.d.Quote(schema.FieldID), " = ").arg(id)
	res, err := r.store.db.ExecContext(ctx, q.String(), q.args...)
	if err != nil {
		return translate(err, "delete from %s", r.table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "delete from %s", r.table)
	}
	if n == 0 {
		return records.ErrNotFound
	}
	return nil
}

func (r *Repository) ExistsByField(ctx context.Context, field string, value any, excludeID string) (bool, error) {
	if value == nil {
		return false, nil
	}
	col, err := r.d.column(field)
	if err != nil {
		return false, err
	}
	q := r.stmt().write("SELECT EXISTS(SELECT 1 FROM ", r.table, " WHERE ", col, " = ").arg(value)
	if excludeID != "" {
		q.write(" AND ", r.d.Quote(schema.FieldID), " <> ").arg(excludeID)
	}
	q.write(")")
	var exists bool
	if err := r.store.db.QueryRowContext(ctx, q.String(), q.args...).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "exists %s.%s", r.table, field)
	}
	return exists, nil
}

// scanRecords читает все строки в записи и закрывает rows.
func scanRecords(rows *sql.Rows) ([]records.Record, error) {
	defer rows.Close()
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	out := []records.Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(records.Record, len(cols))
		for i, c := range cols {
			rec[c.Name()] = normalize(vals[i], c.DatabaseTypeName())
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// normalize приводит значения драйверов к типам записей (числа в float64, текст в string).
func normalize(v any, dbType string) any {
	t := strings.ToUpper(dbType)
	switch x := v.(type) {
	case []byte:
		if isNumericType(t) {
			if f, err := strconv.ParseFloat(string(x), 64); err == nil {
				return f
			}
		}
		return string(x)
	case string:
		if isNumericType(t) {
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return f
			}
		}
		return x
	case int64:
		if strings.Contains(t, "BOOL") {
			return x != 0
		}
		return float64(x)
	case int32:
		return float64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

func isNumericType(t string) bool {
	for _, n := range []string{"DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL", "INT"} {
		if strings.Contains(t, n) {
			return true
		}
	}
	return false
}
