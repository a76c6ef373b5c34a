package fieldtype

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// CoerceFunc приводит присутствующее значение к нормализованному виду.
// Отсутствующие значения (nil, "") сюда не попадают.
type CoerceFunc func(v any) (any, error)

var (
	errNotString = errors.New("must be a string")
	errNotNumber = errors.New("must be a number")
	errNotBool   = errors.New("must be true or false")
	errNotDate   = errors.New("must be a date (YYYY-MM-DD)")

	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`) // YYYY-MM-DD
)

func CoerceString(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		// числа в строки не превращаем: лучше вернуть ошибку
		return nil, errNotString
	}
	return s, nil
}

func CoerceNumber(v any) (any, error) {
	f, err := ToFloat(v)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ToFloat приводит значение к числу строго, NaN и ±Inf дают ошибку.
func ToFloat(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, errNotNumber
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errNotNumber
		}
		f = n
	default:
		return 0, errNotNumber
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber
	}
	return f, nil
}

func CoerceBool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		}
	case float64:
		if t == 1 {
			return true, nil
		}
		if t == 0 {
			return false, nil
		}
	case int:
		if t == 1 {
			return true, nil
		}
		if t == 0 {
			return false, nil
		}
	}
	return nil, errNotBool
}

// CoerceDate принимает YYYY-MM-DD (календарная дата в UTC), RFC3339 и time.Time.
func CoerceDate(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		if dateRe.MatchString(s) {
			d, err := time.Parse("2006-01-02", s)
			if err != nil {
				return nil, errNotDate
			}
			return d, nil
		}
		if d, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return d.UTC(), nil
		}
	}
	return nil, errNotDate
}
