package schema

import "crudadmin/internal/fieldtype"

// Служебные поля: их не показываем в конфиге и не отдаём в валидацию.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

func IsStructural(key string) bool {
	return key == FieldID || key == FieldCreatedAt || key == FieldUpdatedAt
}

// ModelDescriptor описывает модель, найденная в схеме и помеченная для CRUD.
type ModelDescriptor struct {
	Name   string
	Meta   map[string]string // из /// @crud(k: v, ...)
	Fields []FieldDescriptor
}

type FieldDescriptor struct {
	Key       string           `json:"key"`
	Scalar    fieldtype.Scalar `json:"baseType"`
	Required  bool             `json:"required"`
	List      bool             `json:"list,omitempty"`
	Unique    bool             `json:"unique,omitempty"`
	TypeToken string           `json:"typeToken"`
}

// Field ищет поле по ключу.
func (m ModelDescriptor) Field(key string) (FieldDescriptor, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

func describe(f FieldLine) FieldDescriptor {
	return FieldDescriptor{
		Key:       f.Name,
		Scalar:    fieldtype.ScalarFromToken(f.Type),
		Required:  !f.Optional(),
		List:      f.List(),
		Unique:    f.HasUnique(),
		TypeToken: f.Type,
	}
}
