package reference

import "time"

const dateLayout = "2006-01-02"

// Catalog: справочник допустимых значений для select/badge колонок.
type Catalog struct {
	Name  string `yaml:"name" json:"name"`
	Title string `yaml:"title,omitempty" json:"title,omitempty"`
	Items []Item `yaml:"items" json:"items"`
}

type Item struct {
	Code  string `yaml:"code" json:"code"`
	Name  string `yaml:"name" json:"name"`
	Order int    `yaml:"order,omitempty" json:"order,omitempty"`
	// Границы действия, YYYY-MM-DD включительно; пустая: без ограничения.
	ValidFrom string `yaml:"valid_from,omitempty" json:"validFrom,omitempty"`
	ValidTo   string `yaml:"valid_to,omitempty" json:"validTo,omitempty"`
}

// ActiveOn сообщает, действует ли элемент в календарный день t (UTC).
func (it Item) ActiveOn(t time.Time) bool {
	day := t.UTC().Format(dateLayout)
	if it.ValidFrom != "" && day < it.ValidFrom {
		return false
	}
	if it.ValidTo != "" && day > it.ValidTo {
		return false
	}
	return true
}
