package records

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"crudadmin/internal/query"
)

// Record: ключ колонки → нормализованное значение.
// Служебные id/createdAt/updatedAt заполняет репозиторий.
type Record = map[string]any

type ListParams struct {
	Where   query.Where
	OrderBy query.OrderBy
	Skip    int
	Take    int
}

type Page struct {
	Items []Record
	Total int
}

// Repository хранит записи одной модели.
type Repository interface {
	List(ctx context.Context, p ListParams) (Page, error)
	FindByID(ctx context.Context, id string) (Record, error)
	Create(ctx context.Context, data Record) (Record, error)
	// Update меняет только переданные ключи.
	Update(ctx context.Context, id string, data Record) (Record, error)
	Delete(ctx context.Context, id string) error
	ExistsByField(ctx context.Context, field string, value any, excludeID string) (bool, error)
}

// RepositoryFactory выдаёт репозиторий по имени модели.
type RepositoryFactory interface {
	Repository(model string) (Repository, error)
}

var ErrNotFound = errors.New("record not found")

// UniqueViolation: нарушение уникального ограничения на стороне хранилища.
// Field пустой, если хранилище не сообщило колонку.
type UniqueViolation struct {
	Field string
	Err   error
}

func (e *UniqueViolation) Error() string {
	if e.Field == "" {
		return "unique constraint violated"
	}
	return fmt.Sprintf("unique constraint violated on %q", e.Field)
}

func (e *UniqueViolation) Unwrap() error { return e.Err }
