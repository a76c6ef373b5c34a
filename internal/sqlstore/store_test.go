package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopmonkeyus/go-common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudadmin/internal/query"
	"crudadmin/internal/records"
)

func mockRepo(t *testing.T, d Dialect) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo, err := New(db, d, logger.NewTestLogger()).Repository("CrudClient")
	require.NoError(t, err)
	return repo.(*Repository), mock
}

func TestListRendersPostgres(t *testing.T) {
	repo, mock := mockRepo(t, Postgres)
	where := query.Where{Or: []query.Term{
		{Field: "name", Op: query.OpContains, Value: "50%_off"},
		{Field: "price", Op: query.OpEquals, Value: 5.0},
	}}

	mock.ExpectQuery(`SELECT COUNT(*) FROM "CrudClient" WHERE CAST("name" AS TEXT) LIKE $1 ESCAPE '\' OR "price" = $2`).
		WithArgs(`%50\%\_off%`, 5.0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT * FROM "CrudClient" WHERE CAST("name" AS TEXT) LIKE $1 ESCAPE '\' OR "price" = $2 ORDER BY "name" ASC, "id" ASC LIMIT $3 OFFSET $4`).
		WithArgs(`%50\%\_off%`, 5.0, 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price"}).
			AddRow("01HZX", []byte("50%_off bundle"), int64(5)))

	page, err := repo.List(context.Background(), records.ListParams{
		Where:   where,
		OrderBy: query.OrderBy{Field: "name"},
		Skip:    2,
		Take:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, records.Record{"id": "01HZX", "name": "50%_off bundle", "price": 5.0}, page.Items[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRendersMySQLWithoutPredicate(t *testing.T) {
	repo, mock := mockRepo(t, MySQL)
	mock.ExpectQuery("SELECT COUNT(*) FROM `CrudClient`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT * FROM `CrudClient` ORDER BY `createdAt` DESC, `id` DESC LIMIT ?").
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	page, err := repo.List(context.Background(), records.ListParams{
		OrderBy: query.OrderBy{Field: "createdAt", Desc: true},
		Take:    20,
	})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRejectsUnsafeColumn(t *testing.T) {
	repo, _ := mockRepo(t, Postgres)
	_, err := repo.List(context.Background(), records.ListParams{
		Where: query.Where{Or: []query.Term{{Field: `name" OR 1=1 --`, Op: query.OpContains, Value: "x"}}},
	})
	assert.Error(t, err)
}

func TestCreateTranslatesUniqueViolation(t *testing.T) {
	repo, mock := mockRepo(t, Postgres)
	insert := `INSERT INTO "CrudClient" ("createdAt", "id", "updatedAt", "email", "name") VALUES ($1, $2, $3, $4, $5)`

	mock.ExpectExec(insert).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "a@b.co", "Ana").
		WillReturnResult(sqlmock.NewResult(0, 1))
	rec, err := repo.Create(context.Background(), records.Record{"name": "Ana", "email": "a@b.co", "id": "ignored"})
	require.NoError(t, err)
	assert.Len(t, rec["id"], 26)
	assert.IsType(t, time.Time{}, rec["createdAt"])

	mock.ExpectExec(insert).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "a@b.co", "Other").
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (email)=(a@b.co) already exists."})
	_, err = repo.Create(context.Background(), records.Record{"name": "Other", "email": "a@b.co"})
	var uv *records.UniqueViolation
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "email", uv.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDeleteExists(t *testing.T) {
	repo, mock := mockRepo(t, Postgres)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE "CrudClient" SET "age" = $1, "name" = $2, "updatedAt" = $3 WHERE "id" = $4`).
		WithArgs(31.0, "Ana", sqlmock.AnyArg(), "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT * FROM "CrudClient" WHERE "id" = $1`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).AddRow("r1", "Ana", 31.0))
	rec, err := repo.Update(ctx, "r1", records.Record{"name": "Ana", "age": 31.0, "createdAt": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, 31.0, rec["age"])

	mock.ExpectExec(`DELETE FROM "CrudClient" WHERE "id" = $1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(ctx, "gone"), records.ErrNotFound)

	mock.ExpectQuery(`SELECT EXISTS(SELECT 1 FROM "CrudClient" WHERE "email" = $1 AND "id" <> $2)`).
		WithArgs("a@b.co", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.ExistsByField(ctx, "email", "a@b.co", "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ExistsByField(ctx, "email", nil, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUniqueField(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		field  string
		unique bool
	}{
		{"pg detail", &pgconn.PgError{Code: "23505", Detail: `Key ("email")=(x) already exists.`}, "email", true},
		{"pg constraint", &pgconn.PgError{Code: "23505", ConstraintName: "CrudClient_code_key"}, "code", true},
		{"pg composite", &pgconn.PgError{Code: "23505", Detail: "Key (a, b)=(1, 2) already exists."}, "", true},
		{"pg other", &pgconn.PgError{Code: "23502"}, "", false},
		{"mysql 8", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'CrudClient.CrudClient_email_key'"}, "email", true},
		{"mysql plain", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'email'"}, "email", true},
		{"mysql other", &mysql.MySQLError{Number: 1048}, "", false},
		{"plain", sql.ErrConnDone, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, unique := uniqueField(tt.err)
			assert.Equal(t, tt.unique, unique)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestSqliteColumn(t *testing.T) {
	assert.Equal(t, "email", sqliteColumn("constraint failed: UNIQUE constraint failed: CrudClient.email (2067)"))
	assert.Equal(t, "", sqliteColumn("UNIQUE constraint failed: T.a, T.b"))
	assert.Equal(t, "", sqliteColumn("no such table"))
}

func TestDialectFor(t *testing.T) {
	for name, want := range map[string]string{"postgres": "pgx", "PostgreSQL": "pgx", "mysql": "mysql", "sqlite3": "sqlite"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, want, d.Driver)
	}
	_, err := DialectFor("oracle")
	assert.Error(t, err)
	assert.Equal(t, "`a``b`", MySQL.Quote("a`b"))
}

const sqliteDDL = `CREATE TABLE "CrudClient" (
	"id" TEXT PRIMARY KEY,
	"name" TEXT NOT NULL,
	"email" TEXT UNIQUE,
	"age" REAL,
	"createdAt" DATETIME NOT NULL,
	"updatedAt" DATETIME NOT NULL
)`

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, d, err := Open("sqlite", filepath.Join(t.TempDir(), "crud.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.ExecContext(ctx, sqliteDDL)
	require.NoError(t, err)

	repo, err := New(db, d, logger.NewTestLogger()).Repository("CrudClient")
	require.NoError(t, err)

	ana, err := repo.Create(ctx, records.Record{"name": "Ana", "email": "ana@x.co", "age": 30.0})
	require.NoError(t, err)
	_, err = repo.Create(ctx, records.Record{"name": "Bob", "email": "bob@x.co", "age": 41.0})
	require.NoError(t, err)
	_, err = repo.Create(ctx, records.Record{"name": "Carla"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, records.Record{"name": "Dup", "email": "ana@x.co"})
	var uv *records.UniqueViolation
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "email", uv.Field)

	page, err := repo.List(ctx, records.ListParams{
		Where: query.Where{Or: []query.Term{
			{Field: "email", Op: query.OpContains, Value: "@x.co"},
			{Field: "age", Op: query.OpEquals, Value: 99.0},
		}},
		OrderBy: query.OrderBy{Field: "name", Desc: true},
		Take:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Bob", page.Items[0]["name"])
	assert.Equal(t, 41.0, page.Items[0]["age"])

	id := ana["id"].(string)
	upd, err := repo.Update(ctx, id, records.Record{"age": 31.0, "email": nil})
	require.NoError(t, err)
	assert.Equal(t, 31.0, upd["age"])
	assert.Nil(t, upd["email"])
	assert.Equal(t, "Ana", upd["name"])

	exists, err := repo.ExistsByField(ctx, "email", "bob@x.co", "")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.Update(ctx, "missing", records.Record{"age": 1.0})
	assert.ErrorIs(t, err, records.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.FindByID(ctx, id)
	assert.ErrorIs(t, err, records.ErrNotFound)
}
