package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crudadmin/internal/records"
	"crudadmin/internal/schema"
)

// forModel находит use cases модели из URL; при ошибке ответ уже записан.
func forModel(c *gin.Context, d Deps) (*records.UseCases, bool) {
	model := resolveModel(c.Request.Context(), d, c.Param("model"))
	uc, err := d.Records.For(model)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return uc, true
}

// GET /api/crud/:model
func ListHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uc, ok := forModel(c, d)
		if !ok {
			return
		}
		res, err := uc.List(c.Request.Context(), parseListParams(c.Request.URL.Query()))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data": res.Items,
			"pagination": gin.H{
				"page":       res.Page,
				"pageSize":   res.PageSize,
				"total":      res.Total,
				"totalPages": res.TotalPages,
			},
		})
	}
}

// POST /api/crud/:model
func CreateHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uc, ok := forModel(c, d)
		if !ok {
			return
		}
		obj, ok := bindObject(c, uc.Model())
		if !ok {
			return
		}
		rec, err := uc.Create(c.Request.Context(), obj)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": rec})
	}
}

// GET /api/crud/:model/:id
func GetOneHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uc, ok := forModel(c, d)
		if !ok {
			return
		}
		rec, err := uc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rec})
	}
}

// PUT /api/crud/:model/:id
func UpdateHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uc, ok := forModel(c, d)
		if !ok {
			return
		}
		obj, ok := bindObject(c, uc.Model())
		if !ok {
			return
		}
		rec, err := uc.Update(c.Request.Context(), c.Param("id"), obj)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rec})
	}
}

// DELETE /api/crud/:model/:id
func DeleteHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uc, ok := forModel(c, d)
		if !ok {
			return
		}
		res, err := uc.Remove(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type bulkDeleteReq struct {
	IDs []string `json:"ids"`
}

// POST /api/crud/:model/bulk-delete  body: {"ids": [...]}
func BulkDeleteHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uc, ok := forModel(c, d)
		if !ok {
			return
		}
		var req bulkDeleteReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, uc.Model(), "ids", "invalid JSON body")
			return
		}
		if len(req.IDs) == 0 {
			badRequest(c, uc.Model(), "ids", "ids must be a non-empty array")
			return
		}
		res, err := uc.RemoveMany(c.Request.Context(), req.IDs)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// GET /api/crud/:model/check-unique?field=&value=&excludeId=
func CheckUniqueHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uc, ok := forModel(c, d)
		if !ok {
			return
		}
		field := c.Query("field")
		if field == "" {
			badRequest(c, uc.Model(), "field", "missing field")
			return
		}
		var value any
		if v, ok := c.GetQuery("value"); ok {
			value = v
		}
		exists, err := uc.ExistsByField(c.Request.Context(), field, value, c.Query("excludeId"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"exists": exists})
	}
}

type rowColumn struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// GET /api/crud/:model/rows
// Упрощённая таблица: видимые колонки и плоские
// значения последних изменённых записей.
func RowsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		uc, ok := forModel(c, d)
		if !ok {
			return
		}
		cfg, err := d.Configs.RuntimeConfig(ctx, uc.Model())
		if err != nil {
			fail(c, err)
			return
		}
		in := parseListParams(c.Request.URL.Query())
		in.Page = records.DefaultPage
		in.SortBy, in.SortOrder = schema.FieldUpdatedAt, "desc"
		res, err := uc.List(ctx, in)
		if err != nil {
			fail(c, err)
			return
		}

		grid := cfg.GridColumns()
		cols := make([]rowColumn, 0, len(grid))
		for _, col := range grid {
			cols = append(cols, rowColumn{Key: col.Key, Title: col.TitleOrKey()})
		}
		rows := make([]map[string]any, 0, len(res.Items))
		for _, rec := range res.Items {
			out := make(map[string]any, len(cols)+1)
			for _, col := range cols {
				out[col.Key] = cellValue(rec[col.Key])
			}
			if id, ok := rec[schema.FieldID]; ok {
				if _, taken := out[schema.FieldID]; !taken {
					out[schema.FieldID] = id
				}
			}
			rows = append(rows, out)
		}
		c.JSON(http.StatusOK, gin.H{
			"model":    uc.Model(),
			"columns":  cols,
			"rows":     rows,
			"pageSize": res.PageSize,
		})
	}
}

// даты ISO-строкой, вложенные списки и объекты короткой меткой.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []any:
		return fmt.Sprintf("[%d]", len(t))
	case map[string]any:
		return "[obj]"
	}
	return v
}
