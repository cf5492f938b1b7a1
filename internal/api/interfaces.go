// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/imr/Electric8/internal/catalog"
	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/session"
	"github.com/imr/Electric8/internal/tech"
)

// FileHandler handles technology document storage operations
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDownloadFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// DecodeHandler handles decode session operations
type DecodeHandler interface {
	HandleStartDecode(c echo.Context) error
	HandleListDecodes(c echo.Context) error
	HandleDecodeStatus(c echo.Context) error
	HandleDecodeStatusStream(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
}

// TechnologyHandler serves views of decoded technologies
type TechnologyHandler interface {
	HandleCanonicalXML(c echo.Context) error
	HandleMenuPalette(c echo.Context) error
	HandleParseMenuFragment(c echo.Context) error
	HandleSummary(c echo.Context) error
	HandleEvaluate(c echo.Context) error
}

// RulesHandler handles rule table uploads
type RulesHandler interface {
	HandleUploadRules(c echo.Context) error
	HandleListRules(c echo.Context) error
}

// CatalogHandler handles cross-technology queries
type CatalogHandler interface {
	HandleFind(c echo.Context) error
	HandleStats(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Start(fileID, name, digest string, open session.OpenFunc) (*models.DecodeSession, error)
	GetSession(id string) (*models.DecodeSession, bool)
	List() []models.DecodeSession
	Technology(id string) (*tech.Technology, bool)
	TouchSession(id string) bool
	Done(id string) (<-chan struct{}, bool)
}

// Catalog defines the catalog operations used by the handlers
type Catalog interface {
	Index(ctx context.Context, fileID string, t *tech.Technology) error
	Remove(ctx context.Context, fileID string) error
	Find(ctx context.Context, kind string, q catalog.Query) ([]models.CatalogEntry, error)
	Stats(ctx context.Context) (models.CatalogStats, error)
}

var (
	_ SessionManager = (*session.Manager)(nil)
	_ Catalog        = (*catalog.Catalog)(nil)
)
