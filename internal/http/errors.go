// Package httpapi exposes the sneaker API over HTTP.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/apierr"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(c *gin.Context, status int, message, details string) {
	c.AbortWithStatusJSON(status, jsonError{Error: message, Details: details})
}

// writeError renders err. Details leave the process only in debug envs.
func (a *App) writeError(c *gin.Context, err error) {
	e := apierr.As(err)
	details := ""
	if a.Cfg.Debug() {
		details = e.Details()
	}
	WriteJSONError(c, e.Status, e.Message, details)
}
