package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crudadmin/internal/apperr"
)

// fail пишет ошибку в едином формате {error, message, field?, details?}.
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, apperr.ToResponse(err))
}

func badRequest(c *gin.Context, model, field, format string, args ...any) {
	fail(c, apperr.New(apperr.ValidationFailed, model, format, args...).WithField(field))
}

// resolveModel сопоставляет имя из URL с моделью индекса: сначала точное
// совпадение, затем единственное регистронезависимое ("crudclient" → "CrudClient").
// Неизвестное имя возвращается как есть, сервисы ответят ModelNotFound.
func resolveModel(ctx context.Context, d Deps, raw string) string {
	name := strings.TrimSpace(raw)
	models, err := d.Configs.ListModels(ctx)
	if err != nil {
		return name
	}
	var found string
	for _, m := range models {
		if m.Model == name {
			return name
		}
		if strings.EqualFold(m.Model, name) {
			if found != "" { // неуникально
				return name
			}
			found = m.Model
		}
	}
	if found != "" {
		return found
	}
	return name
}

// bindObject читает тело как JSON-объект.
func bindObject(c *gin.Context, model string) (map[string]any, bool) {
	var obj map[string]any
	if err := c.ShouldBindJSON(&obj); err != nil || obj == nil {
		badRequest(c, model, "", "invalid JSON body")
		return nil, false
	}
	return obj, true
}
