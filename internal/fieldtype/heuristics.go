package fieldtype

import (
	"os"
	"regexp"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// PatternRule: эвристика по имени ключа. Если ключ совпадает с Key,
// текстовое поле без явного pattern проверяется регэкспом Pattern.
type PatternRule struct {
	Name    string `yaml:"name"`
	Key     string `yaml:"key"`
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`

	keyRe     *regexp.Regexp
	patternRe *regexp.Regexp
}

// Heuristics: таблица эвристик по ключам. Порядок правил значим, выигрывает первое совпадение.
type Heuristics struct {
	EmailKey string        `yaml:"emailKey"`
	Rules    []PatternRule `yaml:"rules"`

	emailRe *regexp.Regexp
}

func DefaultHeuristics() *Heuristics {
	h := &Heuristics{
		EmailKey: `(?i)email`,
		Rules: []PatternRule{
			{Name: "phone", Key: `(?i)^(phone|telefono|tel)$`, Pattern: `^\d{7,15}$`, Message: "must contain 7 to 15 digits"},
			{Name: "document", Key: `(?i)document`, Pattern: `^\d{5,20}$`, Message: "must contain 5 to 20 digits"},
		},
	}
	if err := h.compile(); err != nil {
		panic(err) // встроенные регэкспы валидны
	}
	return h
}

// LoadHeuristics читает YAML-переопределение. Пустые поля берутся из значений по умолчанию.
func LoadHeuristics(path string) (*Heuristics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var h Heuristics
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	def := DefaultHeuristics()
	if h.EmailKey == "" {
		h.EmailKey = def.EmailKey
	}
	if h.Rules == nil {
		h.Rules = def.Rules
	}
	if err := h.compile(); err != nil {
		return nil, errors.Wrapf(err, "heuristics %s", path)
	}
	return &h, nil
}

func (h *Heuristics) compile() error {
	re, err := regexp.Compile(h.EmailKey)
	if err != nil {
		return errors.Wrap(err, "emailKey")
	}
	h.emailRe = re
	for i := range h.Rules {
		r := &h.Rules[i]
		if r.keyRe, err = regexp.Compile(r.Key); err != nil {
			return errors.Wrapf(err, "rule %q key", r.Name)
		}
		if r.patternRe, err = regexp.Compile(r.Pattern); err != nil {
			return errors.Wrapf(err, "rule %q pattern", r.Name)
		}
	}
	return nil
}

func (h *Heuristics) IsEmailKey(key string) bool {
	return h.emailRe != nil && h.emailRe.MatchString(key)
}

// PatternFor возвращает эвристический регэксп для ключа текстового поля.
func (h *Heuristics) PatternFor(key string) (*regexp.Regexp, string, bool) {
	for _, r := range h.Rules {
		if r.keyRe != nil && r.keyRe.MatchString(key) {
			return r.patternRe, r.Message, true
		}
	}
	return nil, "", false
}
