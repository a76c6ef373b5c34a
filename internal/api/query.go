package api

import (
	"net/url"
	"strconv"
	"strings"

	"crudadmin/internal/records"
)

// ==== Парсинг query-параметров листинга ====

// parseListParams: page, pageSize (алиас take), search, sortBy, sortOrder.
// Некорректные числа молча заменяются значениями по умолчанию,
// границы страниц проверяет records.
func parseListParams(q url.Values) records.ListInput {
	page := 0
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	size := 0
	sv := strings.TrimSpace(q.Get("pageSize"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("take"))
	}
	if sv != "" {
		if n, err := strconv.Atoi(sv); err == nil && n > 0 {
			size = n
		}
	}

	order := strings.ToLower(strings.TrimSpace(q.Get("sortOrder")))
	if order != "asc" && order != "desc" {
		order = ""
	}

	return records.ListInput{
		Page:      page,
		PageSize:  size,
		Search:    q.Get("search"),
		SortBy:    strings.TrimSpace(q.Get("sortBy")),
		SortOrder: order,
	}
}
