package memstore

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"

	"crudadmin/internal/query"
	"crudadmin/internal/records"
	"crudadmin/internal/schema"
)

// Store держит таблицы всех моделей в памяти процесса.
type Store struct {
	mu      sync.RWMutex
	tables  map[string]map[string]records.Record // модель -> id -> запись
	entropy io.Reader
	now     func() time.Time
}

func New() *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store{
		tables:  make(map[string]map[string]records.Record),
		entropy: ulid.Monotonic(src, 0),
		now:     time.Now,
	}
}

// Repository реализует records.RepositoryFactory; таблица создаётся лениво.
func (s *Store) Repository(model string) (records.Repository, error) {
	if !schema.ValidIdentifier(model) {
		return nil, errors.Newf("invalid model name %q", model)
	}
	return &Repository{store: s, model: model}, nil
}

// newID вызывается под s.mu: Monotonic-энтропия не потокобезопасна.
func (s *Store) newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

func (s *Store) table(model string) map[string]records.Record {
	t := s.tables[model]
	if t == nil {
		t = make(map[string]records.Record)
		s.tables[model] = t
	}
	return t
}

// Repository: представление одной таблицы Store.
type Repository struct {
	store *Store
	model string
}

var _ records.Repository = (*Repository)(nil)

func (r *Repository) List(ctx context.Context, p records.ListParams) (records.Page, error) {
	if err := ctx.Err(); err != nil {
		return records.Page{}, err
	}
	r.store.mu.RLock()
	matched := make([]records.Record, 0, len(r.store.tables[r.model]))
	for _, rec := range r.store.tables[r.model] {
		if p.Where.Match(rec) {
			matched = append(matched, rec)
		}
	}
	r.store.mu.RUnlock()

	// map перебирается в случайном порядке: сначала по id, потом по полю сортировки
	query.Sort(matched, query.OrderBy{Field: schema.FieldID})
	query.Sort(matched, p.OrderBy)

	total := len(matched)
	from := min(max(p.Skip, 0), total)
	to := total
	if p.Take > 0 {
		to = min(from+p.Take, total)
	}
	items := make([]records.Record, 0, to-from)
	for _, rec := range matched[from:to] {
		items = append(items, clone(rec))
	}
	return records.Page{Items: items, Total: total}, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (records.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.tables[r.model][id]
	if !ok {
		return nil, records.ErrNotFound
	}
	return clone(rec), nil
}

func (r *Repository) Create(ctx context.Context, data records.Record) (records.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := r.store.now().UTC()
	rec := make(records.Record, len(data)+3)
	for k, v := range data {
		if !schema.IsStructural(k) {
			rec[k] = v
		}
	}
	id := r.store.newID(now)
	rec[schema.FieldID] = id
	rec[schema.FieldCreatedAt] = now
	rec[schema.FieldUpdatedAt] = now
	r.store.table(r.model)[id] = rec
	return clone(rec), nil
}

func (r *Repository) Update(ctx context.Context, id string, data records.Record) (records.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.store.tables[r.model][id]
	if !ok {
		return nil, records.ErrNotFound
	}
	next := clone(rec)
	for k, v := range data {
		if !schema.IsStructural(k) {
			next[k] = v
		}
	}
	next[schema.FieldUpdatedAt] = r.store.now().UTC()
	r.store.tables[r.model][id] = next
	return clone(next), nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t := r.store.tables[r.model]
	if _, ok := t[id]; !ok {
		return records.ErrNotFound
	}
	delete(t, id)
	return nil
}

// ExistsByField: null ни с чем не совпадает, 42 и "42" считаются разными значениями.
func (r *Repository) ExistsByField(ctx context.Context, field string, value any, excludeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if value == nil {
		return false, nil
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for id, rec := range r.store.tables[r.model] {
		if id == excludeID {
			continue
		}
		if equal(rec[field], value) {
			return true, nil
		}
	}
	return false, nil
}

func equal(a, b any) bool {
	if a == nil {
		return false
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr || bStr {
		return aStr && bStr && sa == sb
	}
	return query.Compare(a, b) == 0
}

func clone(rec records.Record) records.Record {
	out := make(records.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
