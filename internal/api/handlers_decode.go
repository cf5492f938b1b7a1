// handlers_decode.go - Decode session operation handlers
package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/storage"
)

// sseHeartbeat is how often an idle progress stream sends a comment line.
const sseHeartbeat = 15 * time.Second

// streamTimeout bounds how long a progress stream waits for a decode.
const streamTimeout = 5 * time.Minute

// DecodeHandlerImpl implements the DecodeHandler interface
type DecodeHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
	logger     *slog.Logger
}

// NewDecodeHandler creates a new decode handler instance
func NewDecodeHandler(store storage.Store, sessionMgr SessionManager, logger *slog.Logger) DecodeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecodeHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
		logger:     logger,
	}
}

// HandleStartDecode starts a decode session for a stored document
func (h *DecodeHandlerImpl) HandleStartDecode(c echo.Context) error {
	var req startDecodeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return storeError("file", req.FileID, err)
	}

	if err := h.store.SetStatus(info.ID, models.FileStatusDecoding); err != nil {
		h.logger.Warn("failed to update file status", "id", info.ID, "error", err)
	}

	fileID := info.ID
	sess, err := h.sessionMgr.Start(info.ID, info.Name, info.Digest, func() (io.ReadCloser, error) {
		return h.store.Open(fileID)
	})
	if err != nil {
		return NewInternalError("failed to start session", err)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandleListDecodes returns every retained session
func (h *DecodeHandlerImpl) HandleListDecodes(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessionMgr.List())
}

// HandleDecodeStatus returns the current status of a decode session
func (h *DecodeHandlerImpl) HandleDecodeStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *DecodeHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleDecodeStatusStream streams session status via SSE until the
// session finishes.
func (h *DecodeHandlerImpl) HandleDecodeStatusStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		sendSSEError(c, "session not found")
		return nil
	}
	sendSSEData(c, sess)
	if sess.IsTerminal() {
		return nil
	}

	done, ok := h.sessionMgr.Done(id)
	if !ok {
		sendSSEError(c, "session not found")
		return nil
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	timeout := time.NewTimer(streamTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-done:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				sendSSEError(c, "session not found")
				return nil
			}
			sendSSEData(c, sess)
			return nil

		case <-heartbeat.C:
			fmt.Fprint(c.Response(), ": keep-alive\n\n")
			c.Response().Flush()

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

type startDecodeRequest struct {
	FileID string `json:"fileId"`
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
