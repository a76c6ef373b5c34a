package validation

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"crudadmin/internal/apperr"
	"crudadmin/internal/crudconfig"
	"crudadmin/internal/fieldtype"
	"crudadmin/internal/schema"
)

type FieldError = apperr.FieldError

// Коды ошибок валидации
const (
	ErrRequired       = "required"
	ErrTypeMismatch   = "type_mismatch"
	ErrTooShort       = "too_short"
	ErrTooLong        = "too_long"
	ErrPattern        = "pattern"
	ErrInvalidPattern = "invalid_pattern"
	ErrInvalidEmail   = "invalid_email"
	ErrMin            = "min"
	ErrMax            = "max"
	ErrFutureDate     = "future_date"
	ErrInvalidOption  = "invalid_option"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Catalogs: источник допустимых значений для select/badge по имени справочника.
type Catalogs interface {
	Codes(name string) ([]string, bool)
}

type Option func(*Validator)

func WithHeuristics(h *fieldtype.Heuristics) Option {
	return func(v *Validator) {
		if h != nil {
			v.heuristics = h
		}
	}
}

func WithCatalogs(c Catalogs) Option {
	return func(v *Validator) { v.catalogs = c }
}

// WithClock подменяет «сейчас» (для maxDateToday).
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

type rule struct {
	col      crudconfig.ColumnConfig
	def      fieldtype.Definition
	known    bool
	required bool

	pattern    *regexp.Regexp
	patternMsg string
	badPattern bool
	options    []string
}

// Validator: скомпилированные правила модели. Безопасен для конкурентного использования.
type Validator struct {
	rules      []rule
	byKey      map[string]int
	heuristics *fieldtype.Heuristics
	catalogs   Catalogs
	now        func() time.Time
}

// Compile строит правила по колонкам; служебные поля не компилируются.
func Compile(cfg *crudconfig.ModelConfig, opts ...Option) *Validator {
	v := &Validator{
		byKey:      map[string]int{},
		heuristics: fieldtype.DefaultHeuristics(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	if cfg == nil {
		return v
	}
	for _, col := range cfg.Columns {
		if schema.IsStructural(col.Key) || col.Key == "" {
			continue
		}
		if _, dup := v.byKey[col.Key]; dup {
			continue
		}
		r := rule{col: col, required: col.IsRequired()}
		r.def, r.known = fieldtype.Lookup(col.UIType)

		// явный pattern важнее эвристик
		if col.Validation != nil && col.Validation.Pattern != "" {
			re, err := regexp.Compile(col.Validation.Pattern)
			if err != nil {
				r.badPattern = true
			} else {
				r.pattern = re
				r.patternMsg = "has an invalid format"
			}
		} else if col.UIType == fieldtype.Text {
			if re, msg, ok := v.heuristics.PatternFor(col.Key); ok {
				r.pattern, r.patternMsg = re, msg
			}
		}

		if col.UIType == fieldtype.Select || col.UIType == fieldtype.Badge {
			r.options = col.Options
			if len(r.options) == 0 && col.Catalog != "" && v.catalogs != nil {
				if codes, ok := v.catalogs.Codes(col.Catalog); ok {
					r.options = codes
				}
			}
		}
		v.byKey[col.Key] = len(v.rules)
		v.rules = append(v.rules, r)
	}
	return v
}

func (v *Validator) Has(key string) bool {
	_, ok := v.byKey[key]
	return ok
}

// Coerce приводит одиночное значение к типу колонки (для проверки уникальности).
func (v *Validator) Coerce(key string, value any) (any, bool) {
	i, ok := v.byKey[key]
	if !ok {
		return nil, false
	}
	r := v.rules[i]
	if !r.known || isAbsent(value) {
		return value, true
	}
	out, err := r.def.Coerce(value)
	if err != nil {
		return value, true
	}
	return out, true
}

// Validate проверяет все поля независимо и возвращает нормализованные значения
// либо полный список ошибок. Неизвестные и служебные ключи отбрасываются.
func (v *Validator) Validate(input map[string]any) (map[string]any, []FieldError) {
	out := make(map[string]any, len(v.rules))
	var errs []FieldError
	for _, r := range v.rules {
		raw, present := input[r.col.Key]
		if isAbsent(raw) {
			if r.required {
				errs = append(errs, ferr(ErrRequired, r.col, "is required"))
				continue
			}
			if present {
				out[r.col.Key] = nil // явно очищено
			}
			continue
		}
		norm, fe := v.check(r, raw)
		if len(fe) > 0 {
			errs = append(errs, fe...)
			continue
		}
		out[r.col.Key] = norm
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func (v *Validator) check(r rule, raw any) (any, []FieldError) {
	if !r.known {
		return raw, nil
	}
	norm, err := r.def.Coerce(raw)
	if err != nil {
		return nil, []FieldError{ferr(ErrTypeMismatch, r.col, err.Error())}
	}

	var errs []FieldError
	val := r.col.Validation
	switch r.col.UIType {
	case fieldtype.Text, fieldtype.Email:
		s := norm.(string)
		if val != nil {
			n := utf8.RuneCountInString(s)
			if val.MinLength != nil && n < *val.MinLength {
				errs = append(errs, ferr(ErrTooShort, r.col, fmt.Sprintf("must have at least %d characters", *val.MinLength)))
			}
			if val.MaxLength != nil && n > *val.MaxLength {
				errs = append(errs, ferr(ErrTooLong, r.col, fmt.Sprintf("must have at most %d characters", *val.MaxLength)))
			}
		}
		if r.col.UIType == fieldtype.Email && !emailRe.MatchString(s) {
			errs = append(errs, ferr(ErrInvalidEmail, r.col, "must be a valid email"))
		}
		switch {
		case r.badPattern:
			errs = append(errs, ferr(ErrInvalidPattern, r.col, "has an invalid pattern configured"))
		case r.pattern != nil && !r.pattern.MatchString(s):
			errs = append(errs, ferr(ErrPattern, r.col, r.patternMsg))
		}

	case fieldtype.Select, fieldtype.Badge:
		s := norm.(string)
		if len(r.options) > 0 && !contains(r.options, s) {
			errs = append(errs, ferr(ErrInvalidOption, r.col, fmt.Sprintf("must be one of %v", r.options)))
		}

	case fieldtype.NumberUI, fieldtype.Currency:
		f := norm.(float64)
		if val != nil {
			if val.Min != nil && f < *val.Min {
				errs = append(errs, ferr(ErrMin, r.col, fmt.Sprintf("must be at least %v", *val.Min)))
			}
			if val.Max != nil && f > *val.Max {
				errs = append(errs, ferr(ErrMax, r.col, fmt.Sprintf("must be at most %v", *val.Max)))
			}
		}

	case fieldtype.Date:
		d := norm.(time.Time)
		if val != nil && val.MaxDateToday {
			now := v.now().UTC()
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
			if day.After(today) {
				errs = append(errs, ferr(ErrFutureDate, r.col, "cannot be in the future"))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return norm, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func ferr(code string, col crudconfig.ColumnConfig, msg string) FieldError {
	return FieldError{Code: code, Field: col.Key, Message: col.TitleOrKey() + " " + msg}
}
