package query

import (
	"math"
	"strconv"
	"strings"

	"crudadmin/internal/crudconfig"
	"crudadmin/internal/fieldtype"
	"crudadmin/internal/schema"
)

const DefaultSortField = schema.FieldCreatedAt

type Op string

const (
	OpEquals   Op = "equals"
	OpContains Op = "contains"
)

type Term struct {
	Field string
	Op    Op
	Value any // float64 для equals, string для contains
}

// Where: дизъюнкция условий, пустая подходит всем записям.
type Where struct {
	Or []Term
}

func (w Where) IsEmpty() bool { return len(w.Or) == 0 }

type OrderBy struct {
	Field string
	Desc  bool
}

type Query struct {
	Where   Where
	OrderBy OrderBy
}

// Build собирает поиск по filterable-колонкам и сортировку.
// Числовая строка поиска сравнивается на равенство с number/currency колонками,
// всё остальное: вхождение подстроки.
func Build(columns []crudconfig.ColumnConfig, search, sortBy, sortOrder string) Query {
	return Query{
		Where:   buildWhere(columns, search),
		OrderBy: buildOrderBy(columns, sortBy, sortOrder),
	}
}

func buildWhere(columns []crudconfig.ColumnConfig, search string) Where {
	search = strings.TrimSpace(search)
	if search == "" {
		return Where{}
	}
	n, numeric := parseFinite(search)

	var w Where
	for _, c := range columns {
		if !c.Filterable || schema.IsStructural(c.Key) {
			continue
		}
		if numeric && (c.UIType == fieldtype.NumberUI || c.UIType == fieldtype.Currency) {
			w.Or = append(w.Or, Term{Field: c.Key, Op: OpEquals, Value: n})
			continue
		}
		w.Or = append(w.Or, Term{Field: c.Key, Op: OpContains, Value: search})
	}
	return w
}

func buildOrderBy(columns []crudconfig.ColumnConfig, sortBy, sortOrder string) OrderBy {
	field := DefaultSortField
	sortBy = strings.TrimSpace(sortBy)
	if schema.IsStructural(sortBy) {
		field = sortBy
	} else {
		for _, c := range columns {
			if c.Key == sortBy && sortBy != "" {
				field = sortBy
				break
			}
		}
	}
	return OrderBy{Field: field, Desc: !strings.EqualFold(strings.TrimSpace(sortOrder), "asc")}
}

func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
