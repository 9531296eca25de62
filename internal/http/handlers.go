package httpapi

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/catalog"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/config"
	httpopenapi "github.com/fairyhunter13/sneaker-customizer-service/internal/http/openapi"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/model"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/queue"
)

// App holds the dependencies shared by the HTTP handlers.
type App struct {
	Cfg     config.Config
	Service *catalog.Service
	Manager *queue.Manager
	started time.Time

	mu      sync.Mutex
	closing bool
	writes  sync.WaitGroup
}

type deleteResponse struct {
	Message string        `json:"message"`
	Record  model.Product `json:"record"`
}

// NewApp builds an App for the router.
func NewApp(cfg config.Config, svc *catalog.Service, m *queue.Manager) *App {
	return &App{Cfg: cfg, Service: svc, Manager: m, started: time.Now()}
}

// StartShutdown rejects further mutations. Mutations already admitted keep
// running and may still enqueue index ops.
func (a *App) StartShutdown() {
	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()
}

func (a *App) isClosing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closing
}

// FinishWrites waits for mutations admitted before StartShutdown, then closes
// the index queue intake. It reports false if ctx ends first; intake is closed
// either way.
func (a *App) FinishWrites(ctx context.Context) bool {
	a.StartShutdown()
	done := make(chan struct{})
	go func() {
		a.writes.Wait()
		close(done)
	}()
	ok := true
	select {
	case <-done:
	case <-ctx.Done():
		ok = false
	}
	a.Manager.CloseIntake()
	return ok
}

// acceptingWrites aborts with 503 once shutdown has begun and tracks the
// mutations it lets through.
func (a *App) acceptingWrites(c *gin.Context) {
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		WriteJSONError(c, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	a.writes.Add(1)
	a.mu.Unlock()
	defer a.writes.Done()
	c.Next()
}

// bindInput decodes a JSON body. An empty body is an empty input.
func (a *App) bindInput(c *gin.Context) (catalog.Input, bool) {
	var in catalog.Input
	if ct := c.GetHeader("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			WriteJSONError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
			return in, false
		}
	}
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		details := ""
		if a.Cfg.Debug() {
			details = err.Error()
		}
		WriteJSONError(c, http.StatusBadRequest, "invalid_json", details)
		return in, false
	}
	return in, true
}

func (a *App) listHandler(c *gin.Context) {
	rows, err := a.Service.List(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (a *App) getHandler(c *gin.Context) {
	id, err := catalog.ParseID(c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	p, err := a.Service.Get(c.Request.Context(), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *App) createHandler(c *gin.Context) {
	in, ok := a.bindInput(c)
	if !ok {
		return
	}
	p, err := a.Service.Create(c.Request.Context(), in)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a *App) updateHandler(c *gin.Context) {
	id, err := catalog.ParseID(c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	in, ok := a.bindInput(c)
	if !ok {
		return
	}
	p, err := a.Service.Update(c.Request.Context(), id, in)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *App) deleteHandler(c *gin.Context) {
	id, err := catalog.ParseID(c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	p, err := a.Service.Delete(c.Request.Context(), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteResponse{Message: "Sneaker deleted", Record: p})
}

func (a *App) ownedHandler(c *gin.Context) {
	ids, err := a.Service.Owned(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (a *App) auditHandler(c *gin.Context) {
	rep, err := a.Service.Audit(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (a *App) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *App) readyHandler(c *gin.Context) {
	if a.isClosing() {
		WriteJSONError(c, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	if err := a.Service.Ready(c.Request.Context()); err != nil {
		details := ""
		if a.Cfg.Debug() {
			details = err.Error()
		}
		WriteJSONError(c, http.StatusServiceUnavailable, "store_unavailable", details)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (a *App) metricsHandler(c *gin.Context) {
	m := a.Manager.Metrics()
	c.JSON(http.StatusOK, gin.H{
		"index_ops_enqueued":  m.Enqueued,
		"index_ops_processed": m.Processed,
		"index_ops_failed":    m.Failed,
		"backlog_size":        m.Backlog,
		"queue_depth":         m.Depth,
		"owned_index_backend": a.Cfg.OwnedIndexBackend,
		"db_driver":           a.Cfg.DBDriver,
		"uptime_sec":          time.Since(a.started).Seconds(),
	})
}

func (a *App) openapiHandler(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", httpopenapi.YAML)
}

func (a *App) docsHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(docsHTML))
}

const docsHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Sneaker Customizer API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
