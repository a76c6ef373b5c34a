package fieldtype

import (
	"strings"
)

// Scalar: базовое семейство типа поля схемы.
type Scalar string

const (
	String   Scalar = "String"
	Number   Scalar = "Number"
	Boolean  Scalar = "Boolean"
	DateTime Scalar = "DateTime"
)

// UIType: способ отображения/редактирования колонки.
type UIType string

const (
	Text     UIType = "text"
	Email    UIType = "email"
	NumberUI UIType = "number"
	Currency UIType = "currency"
	Bool     UIType = "boolean"
	Date     UIType = "date"
	Select   UIType = "select"
	Badge    UIType = "badge"
)

// Definition это строка единой таблицы обработчиков; её используют и маппер типов,
// и компилятор валидации.
type Definition struct {
	UI     UIType
	Scalar Scalar
	Token  string // скалярный токен, который пишется в схему
	Coerce CoerceFunc
}

var definitions = map[UIType]Definition{
	Text:     {UI: Text, Scalar: String, Token: "String", Coerce: CoerceString},
	Email:    {UI: Email, Scalar: String, Token: "String", Coerce: CoerceString},
	Select:   {UI: Select, Scalar: String, Token: "String", Coerce: CoerceString},
	Badge:    {UI: Badge, Scalar: String, Token: "String", Coerce: CoerceString},
	NumberUI: {UI: NumberUI, Scalar: Number, Token: "Int", Coerce: CoerceNumber},
	Currency: {UI: Currency, Scalar: Number, Token: "Decimal", Coerce: CoerceNumber},
	Bool:     {UI: Bool, Scalar: Boolean, Token: "Boolean", Coerce: CoerceBool},
	Date:     {UI: Date, Scalar: DateTime, Token: "DateTime", Coerce: CoerceDate},
}

// порядок важен, первый элемент считается типом по умолчанию
var allowed = map[Scalar][]UIType{
	String:   {Text, Email, Select, Badge},
	Number:   {NumberUI, Currency},
	DateTime: {Date},
	Boolean:  {Bool},
}

// Lookup возвращает определение UI-типа; ok=false для неизвестных типов.
func Lookup(ui UIType) (Definition, bool) {
	d, ok := definitions[ui]
	return d, ok
}

// ScalarFromToken: Int|BigInt|Float|Decimal → Number, Boolean, DateTime, остальное → String.
// Маркеры `?` и `[]` игнорируются.
func ScalarFromToken(token string) Scalar {
	base := BaseToken(token)
	switch base {
	case "Int", "BigInt", "Float", "Decimal":
		return Number
	case "Boolean":
		return Boolean
	case "DateTime":
		return DateTime
	default:
		return String
	}
}

// BaseToken срезает модификаторы `?` и `[]`.
func BaseToken(token string) string {
	t := strings.TrimSpace(token)
	t = strings.TrimSuffix(t, "?")
	t = strings.TrimSuffix(t, "[]")
	return t
}

func Allowed(s Scalar) []UIType {
	list := allowed[s]
	out := make([]UIType, len(list))
	copy(out, list)
	return out
}

func IsAllowed(s Scalar, ui UIType) bool {
	for _, u := range allowed[s] {
		if u == ui {
			return true
		}
	}
	return false
}

// DefaultUIType возвращает первый разрешённый тип; для строк с ключом вида *email* это email.
func DefaultUIType(s Scalar, key string, h *Heuristics) UIType {
	if h == nil {
		h = DefaultHeuristics()
	}
	if s == String && h.IsEmailKey(key) {
		return Email
	}
	if list := allowed[s]; len(list) > 0 {
		return list[0]
	}
	return Text
}

// ScalarOf возвращает семейство UI-типа. Неизвестные типы считаются строковыми.
func ScalarOf(ui UIType) Scalar {
	if d, ok := definitions[ui]; ok {
		return d.Scalar
	}
	return String
}

// SchemaToken: number→Int, currency→Decimal, boolean→Boolean, date→DateTime, иначе String.
func SchemaToken(ui UIType) string {
	if d, ok := definitions[ui]; ok {
		return d.Token
	}
	return "String"
}
