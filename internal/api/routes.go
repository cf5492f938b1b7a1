// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/imr/Electric8/internal/rules"
	"github.com/imr/Electric8/internal/schema"
	"github.com/imr/Electric8/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	SessionMgr SessionManager
	Catalog    Catalog // optional
	Rules      *rules.Registry
	Schemas    *schema.Cache // nil when validation is disabled
	Policy     FilePolicy
	Logger     *slog.Logger
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health     HealthHandler
	Files      FileHandler
	Decode     DecodeHandler
	Technology TechnologyHandler
	Catalog    CatalogHandler
	Rules      RulesHandler
	WebSocket  *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := deps.Rules
	if registry == nil {
		registry = rules.NewRegistry("", logger)
	}
	return &Handlers{
		Health:     NewHealthHandler(deps.Version, deps.Schemas),
		Files:      NewFileHandler(deps.Store, deps.Catalog, deps.Policy, logger),
		Decode:     NewDecodeHandler(deps.Store, deps.SessionMgr, logger),
		Technology: NewTechnologyHandler(deps.SessionMgr, registry),
		Catalog:    NewCatalogHandler(deps.Catalog),
		Rules:      NewRulesHandler(registry),
		WebSocket:  NewWebSocketHandler(deps.Store, deps.SessionMgr, logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Document routes
	files := e.Group("/api/files")
	files.POST("/upload", handlers.Files.HandleUploadFile)
	files.POST("/upload/chunk", handlers.Files.HandleUploadChunk)
	files.POST("/upload/complete", handlers.Files.HandleCompleteUpload)
	files.POST("/upload/binary", handlers.Files.HandleUploadBinary)
	files.GET("/recent", handlers.Files.HandleGetRecentFiles)
	files.GET("/:id", handlers.Files.HandleGetFile)
	files.GET("/:id/content", handlers.Files.HandleDownloadFile)
	files.DELETE("/:id", handlers.Files.HandleDeleteFile)
	files.PUT("/:id", handlers.Files.HandleRenameFile)

	// Decode session routes
	decode := e.Group("/api/decode")
	decode.POST("", handlers.Decode.HandleStartDecode)
	decode.GET("", handlers.Decode.HandleListDecodes)
	decode.GET("/:sessionId/status", handlers.Decode.HandleDecodeStatus)
	decode.POST("/:sessionId/keepalive", handlers.Decode.HandleSessionKeepAlive)
	decode.GET("/:sessionId/progress", handlers.Decode.HandleDecodeStatusStream)

	// Decoded technology views
	decode.GET("/:sessionId/xml", handlers.Technology.HandleCanonicalXML)
	decode.GET("/:sessionId/menu", handlers.Technology.HandleMenuPalette)
	decode.POST("/:sessionId/menu", handlers.Technology.HandleParseMenuFragment)
	decode.GET("/:sessionId/summary", handlers.Technology.HandleSummary)
	decode.POST("/:sessionId/evaluate", handlers.Technology.HandleEvaluate)

	// Rule tables
	rulesGroup := e.Group("/api/rules")
	rulesGroup.GET("", handlers.Rules.HandleListRules)
	rulesGroup.PUT("/:id", handlers.Rules.HandleUploadRules)

	// Catalog
	catalogGroup := e.Group("/api/catalog")
	catalogGroup.GET("/stats", handlers.Catalog.HandleStats)
	catalogGroup.GET("/:kind", handlers.Catalog.HandleFind)

	RegisterWebSocketRoutes(e, handlers)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws", handlers.WebSocket.HandleWebSocket)
}

// MiddlewareOptions selects the optional middleware
type MiddlewareOptions struct {
	RequestLogging bool
	EnableCORS     bool
	AllowOrigins   string
	BodyLimit      string
	Gzip           bool
	GzipLevel      int
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())

	if opts.RequestLogging {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.HasSuffix(path, "/status") ||
					strings.HasSuffix(path, "/progress") ||
					path == "/api/health"
			},
		}))
	}

	if opts.EnableCORS {
		origins := []string{"*"}
		if opts.AllowOrigins != "" {
			origins = strings.Split(opts.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		}))
	}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if opts.Gzip {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: opts.GzipLevel,
			Skipper: func(c echo.Context) bool {
				// Streams flush incrementally
				p := c.Path()
				return strings.HasSuffix(p, "/progress") || p == "/api/ws"
			},
		}))
	}
}
