package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crudadmin/internal/crudconfig"
	"crudadmin/internal/reference"
)

// ===== CONFIG HANDLERS =====

// GET /api/config-crud/tables[?run=1]
func TablesHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var (
			list []crudconfig.IndexEntry
			err  error
		)
		if c.Query("run") == "1" {
			list, err = d.Configs.RunDiscovery(ctx)
		} else {
			list, err = d.Configs.ListModels(ctx)
		}
		if err != nil {
			fail(c, err)
			return
		}
		if list == nil {
			list = []crudconfig.IndexEntry{}
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

// POST /api/config-crud/discover
func DiscoverHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Configs.RunDiscovery(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		if list == nil {
			list = []crudconfig.IndexEntry{}
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

// POST /api/config-crud/models
func CreateModelHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req crudconfig.NewModel
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "", "", "invalid JSON body")
			return
		}
		cfg, err := d.Configs.CreateModel(c.Request.Context(), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": cfg})
	}
}

// GET /api/config-crud/:model
func GetConfigHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		model := resolveModel(ctx, d, c.Param("model"))
		cfg, err := d.Configs.GetModelConfig(ctx, model)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

// PUT /api/config-crud/:model
func SaveConfigHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		model := resolveModel(ctx, d, c.Param("model"))
		var in crudconfig.ModelConfig
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, model, "", "invalid JSON body")
			return
		}
		saved, err := d.Configs.SaveModelConfig(ctx, model, &in)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "data": saved})
	}
}

// PUT /api/config-crud/:model/columns/:key
func SaveColumnHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		model := resolveModel(ctx, d, c.Param("model"))
		var patch crudconfig.ColumnPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, model, "", "invalid JSON body")
			return
		}
		col, err := d.Configs.SaveColumnConfig(ctx, model, c.Param("key"), patch)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": col})
	}
}

// POST /api/config-crud/:model/sync
func SyncHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		model := resolveModel(ctx, d, c.Param("model"))
		res, err := d.Configs.SyncSchemaFromConfig(ctx, model)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":       true,
			"model":    res.Model,
			"changed":  res.Changed,
			"appended": res.Appended,
			"warnings": res.Warnings,
		})
	}
}

// GET /api/config-crud/:model/keys
func KeysHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		model := resolveModel(ctx, d, c.Param("model"))
		keys, err := d.Configs.ModelKeys(ctx, model)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"model": model, "keys": keys})
	}
}

// GET /api/config-crud/catalogs
func CatalogsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list := []reference.Catalog{}
		if d.Catalogs != nil {
			list = append(list, d.Catalogs.List()...)
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}
