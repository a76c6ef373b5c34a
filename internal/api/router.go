// api/router.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/shopmonkeyus/go-common/logger"

	"crudadmin/internal/crudconfig"
	"crudadmin/internal/records"
	"crudadmin/internal/reference"
)

// Catalogs может быть nil.
type Deps struct {
	Configs  *crudconfig.Service
	Records  *records.Registry
	Catalogs *reference.Catalogs
	Logger   logger.Logger
}

func NewRouter(d Deps) *gin.Engine {
	log := d.Logger.WithPrefix("[api]")
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	cfg := r.Group("/api/config-crud")
	{
		// статические маршруты: раньше :model
		cfg.GET("/tables", TablesHandler(d))
		cfg.GET("/catalogs", CatalogsHandler(d))
		cfg.POST("/discover", DiscoverHandler(d))
		cfg.POST("/models", CreateModelHandler(d))

		cfg.GET("/:model", GetConfigHandler(d))
		cfg.PUT("/:model", SaveConfigHandler(d))
		cfg.PUT("/:model/columns/:key", SaveColumnHandler(d))
		cfg.POST("/:model/sync", SyncHandler(d))
		cfg.GET("/:model/keys", KeysHandler(d))
	}

	crud := r.Group("/api/crud")
	{
		crud.GET("/:model/check-unique", CheckUniqueHandler(d))
		crud.GET("/:model/rows", RowsHandler(d))
		crud.POST("/:model/bulk-delete", BulkDeleteHandler(d))

		crud.GET("/:model", ListHandler(d))
		crud.POST("/:model", CreateHandler(d))
		crud.GET("/:model/:id", GetOneHandler(d))
		crud.PUT("/:model/:id", UpdateHandler(d))
		crud.DELETE("/:model/:id", DeleteHandler(d))
	}

	return r
}

// RunServer слушает addr до отмены ctx, затем даёт запросам 10s на завершение.
func RunServer(ctx context.Context, addr string, d Deps) error {
	srv := &http.Server{Addr: addr, Handler: NewRouter(d), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		d.Logger.Info("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}
	d.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Trace("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
