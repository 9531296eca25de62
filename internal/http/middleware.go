package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/obs"
)

const headerRequestID = "X-Request-Id"

// RequestID reuses the caller's X-Request-Id or mints one, echoes it on the
// response and stores it on the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(obs.WithRequestID(c.Request.Context(), reqID))
		c.Next()
	}
}

// RequestLogger logs one http_request line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"bytes", c.Writer.Size(),
			"latency_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"request_id", obs.RequestID(c.Request.Context()),
		}
		switch {
		case status >= 500:
			obs.Logger.Error("http_request", fields...)
		case status >= 400:
			obs.Logger.Warn("http_request", fields...)
		default:
			obs.Logger.Info("http_request", fields...)
		}
	}
}

func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	})
}
