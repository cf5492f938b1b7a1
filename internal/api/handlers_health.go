// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/imr/Electric8/internal/schema"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	schemas *schema.Cache
}

// NewHealthHandler creates a new health handler. schemas may be nil when
// validation is disabled.
func NewHealthHandler(version string, schemas *schema.Cache) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		schemas: schemas,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":     "ok",
		"version":    h.version,
		"validation": h.schemas != nil,
	}
	if h.schemas != nil {
		_, ok := h.schemas.Get()
		resp["schema"] = ok
		if !ok {
			if err := h.schemas.Err(); err != nil {
				resp["schemaError"] = err.Error()
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}
