// handlers_catalog.go - Catalog and rule table handlers
package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/imr/Electric8/internal/catalog"
	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/rules"
)

// CatalogHandlerImpl implements the CatalogHandler interface
type CatalogHandlerImpl struct {
	catalog Catalog
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(cat Catalog) CatalogHandler {
	return &CatalogHandlerImpl{catalog: cat}
}

// HandleFind searches indexed layers, arcs or nodes
func (h *CatalogHandlerImpl) HandleFind(c echo.Context) error {
	if h.catalog == nil {
		return NewServiceUnavailableError("catalog is not configured")
	}

	kind := c.Param("kind")
	switch kind {
	case catalog.KindLayer, catalog.KindArc, catalog.KindNode:
	default:
		return NewBadRequestError("unknown catalog kind: "+kind, nil)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	q := catalog.Query{
		Name:     c.QueryParam("name"),
		Function: c.QueryParam("function"),
		FileID:   c.QueryParam("fileId"),
		Limit:    limit,
	}

	entries, err := h.catalog.Find(c.Request().Context(), kind, q)
	if err != nil {
		return NewInternalError("catalog query failed", err)
	}
	if entries == nil {
		entries = []models.CatalogEntry{}
	}

	return c.JSON(http.StatusOK, entries)
}

// HandleStats returns catalog counts
func (h *CatalogHandlerImpl) HandleStats(c echo.Context) error {
	if h.catalog == nil {
		return NewServiceUnavailableError("catalog is not configured")
	}

	stats, err := h.catalog.Stats(c.Request().Context())
	if err != nil {
		return NewInternalError("catalog query failed", err)
	}

	return c.JSON(http.StatusOK, stats)
}

// RulesHandlerImpl implements the RulesHandler interface
type RulesHandlerImpl struct {
	registry *rules.Registry
}

// NewRulesHandler creates a new rules handler
func NewRulesHandler(registry *rules.Registry) RulesHandler {
	return &RulesHandlerImpl{registry: registry}
}

// HandleUploadRules registers the YAML rule table in the request body
// under the id in the path.
func (h *RulesHandlerImpl) HandleUploadRules(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxFragmentSize))
	if err != nil {
		return NewBadRequestError("failed to read request body", err)
	}
	if len(data) == 0 {
		return NewValidationError("body")
	}

	info, err := h.registry.Add(id, data)
	if err != nil {
		return NewBadRequestError("invalid rule table", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleListRules lists the registered rule tables
func (h *RulesHandlerImpl) HandleListRules(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.List())
}
