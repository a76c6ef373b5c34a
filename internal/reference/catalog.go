package reference

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Catalogs: набор справочников по имени. Только чтение после загрузки.
type Catalogs struct {
	byName map[string]Catalog
	now    func() time.Time
}

func New(list ...Catalog) *Catalogs {
	c := &Catalogs{byName: make(map[string]Catalog, len(list)), now: time.Now}
	for _, cat := range list {
		c.byName[cat.Name] = normalize(cat)
	}
	return c
}

// Load читает все *.yaml / *.yml из dir. Пустой dir или отсутствующая папка: пустой набор.
func Load(dir string) (*Catalogs, error) {
	c := New()
	if strings.TrimSpace(dir) == "" {
		return c, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.Wrapf(err, "read catalogs dir %s", dir)
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read catalog %s", path)
		}
		var cat Catalog
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, errors.Wrapf(err, "parse catalog %s", path)
		}
		// имя справочника: из файла, если не задано внутри
		if cat.Name == "" {
			cat.Name = strings.TrimSuffix(e.Name(), ext)
		}
		if _, dup := c.byName[cat.Name]; dup {
			return nil, errors.Newf("duplicate catalog %q in %s", cat.Name, path)
		}
		c.byName[cat.Name] = normalize(cat)
	}
	return c, nil
}

// normalize сортирует элементы по order, затем по коду.
func normalize(cat Catalog) Catalog {
	items := append([]Item(nil), cat.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].Code < items[j].Code
	})
	cat.Items = items
	return cat
}

// Codes: коды, действующие сегодня. Реализует validation.Catalogs.
func (c *Catalogs) Codes(name string) ([]string, bool) {
	cat, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	now := c.now()
	codes := make([]string, 0, len(cat.Items))
	for _, it := range cat.Items {
		if it.ActiveOn(now) {
			codes = append(codes, it.Code)
		}
	}
	return codes, true
}

func (c *Catalogs) Get(name string) (Catalog, bool) {
	cat, ok := c.byName[name]
	return cat, ok
}

// List возвращает все справочники, отсортированные по имени.
func (c *Catalogs) List() []Catalog {
	out := make([]Catalog, 0, len(c.byName))
	for _, cat := range c.byName {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalogs) Len() int { return len(c.byName) }
