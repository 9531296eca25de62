package httpapi

import (
	"expvar"

	"github.com/gin-gonic/gin"
)

// NewRouter registers HTTP routes and middleware.
func NewRouter(app *App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(), CORS(app.Cfg.CORSOrigins))

	api := r.Group("/api/sneakers")
	api.GET("", app.listHandler)
	api.GET("/created", app.ownedHandler)
	api.GET("/created/audit", app.auditHandler)
	api.GET("/:id", app.getHandler)

	writes := api.Group("", app.acceptingWrites)
	writes.POST("", app.createHandler)
	writes.PUT("/:id", app.updateHandler)
	writes.PATCH("/:id", app.updateHandler)
	writes.DELETE("/:id", app.deleteHandler)

	r.GET("/healthz", app.healthHandler)
	r.GET("/readyz", app.readyHandler)
	r.GET("/debug/metrics", app.metricsHandler)
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	r.GET("/openapi.yaml", app.openapiHandler)
	r.GET("/docs", app.docsHandler)
	return r
}
