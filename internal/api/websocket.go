package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/storage"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypeUploadInit     = "upload:init"
	MsgTypeUploadChunk    = "upload:chunk"
	MsgTypeUploadComplete = "upload:complete"
	MsgTypeSubscribe      = "decode:subscribe"
	MsgTypePing           = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeAck       = "ack"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeStatus    = "decode:status"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope of every WebSocket message
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// UploadInitPayload starts a chunked upload
type UploadInitPayload struct {
	FileName    string `json:"fileName"`
	TotalChunks int    `json:"totalChunks"`
	TotalSize   int64  `json:"totalSize"`
}

// UploadChunkPayload carries one chunk
type UploadChunkPayload struct {
	UploadID   string `json:"uploadId"`
	ChunkIndex int    `json:"chunkIndex"`
	Data       string `json:"data"` // Base64 encoded chunk
}

// UploadCompletePayload finishes a chunked upload. Decode starts a
// session for the stored document and streams its status.
type UploadCompletePayload struct {
	UploadID string `json:"uploadId"`
	Decode   bool   `json:"decode,omitempty"`
}

// SubscribePayload asks for the status of a decode session
type SubscribePayload struct {
	SessionID string `json:"sessionId"`
}

// WSProgressResponse reports upload progress
type WSProgressResponse struct {
	UploadID string  `json:"uploadId,omitempty"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

// WSCompleteResponse reports a finished upload
type WSCompleteResponse struct {
	UploadID string                `json:"uploadId,omitempty"`
	FileInfo *models.FileInfo      `json:"fileInfo,omitempty"`
	Session  *models.DecodeSession `json:"session,omitempty"`
}

// WSErrorResponse reports a failed request
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// wsUpload tracks an in-progress upload on one connection
type wsUpload struct {
	FileName    string
	TotalChunks int
	Received    map[int]bool
}

// WebSocketHandler serves chunked uploads and decode status streams
type WebSocketHandler struct {
	store      storage.Store
	sessionMgr SessionManager
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(store storage.Store, sessionMgr SessionManager, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		store:      store,
		sessionMgr: sessionMgr,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
	}
}

// wsConn serialises writes from the read loop and status watchers
type wsConn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	logger  *slog.Logger
	uploads map[string]*wsUpload
}

func (c *wsConn) send(msgType, id string, payload interface{}) {
	msg := WSMessage{Type: msgType, ID: id, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.logger.Warn("websocket payload encoding failed", "type", msgType, "error", err)
			return
		}
		msg.Payload = data
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Debug("websocket write failed", "type", msgType, "error", err)
	}
}

func (c *wsConn) sendError(id, message, code string) {
	c.send(MsgTypeError, id, WSErrorResponse{Message: message, Code: code})
}

// HandleWebSocket upgrades the connection and runs the message loop
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	var watchers sync.WaitGroup
	defer func() {
		cancel()
		watchers.Wait()
	}()

	conn := &wsConn{ws: ws, logger: wsh.logger, uploads: make(map[string]*wsUpload)}
	wsh.logger.Debug("websocket client connected", "remote", c.RealIP())
	conn.send(MsgTypeConnected, "", nil)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				wsh.logger.Warn("websocket connection error", "error", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.sendError("", "Invalid message: "+err.Error(), "INVALID_MESSAGE")
			continue
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(MsgTypePong, msg.ID, nil)
		case MsgTypeUploadInit:
			wsh.handleUploadInit(conn, msg)
		case MsgTypeUploadChunk:
			wsh.handleUploadChunk(conn, msg)
		case MsgTypeUploadComplete:
			if sessionID, ok := wsh.handleUploadComplete(conn, msg); ok {
				wsh.watch(ctx, &watchers, conn, sessionID)
			}
		case MsgTypeSubscribe:
			var payload SubscribePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.SessionID == "" {
				conn.sendError(msg.ID, "Invalid subscribe payload", "INVALID_PAYLOAD")
				continue
			}
			wsh.watch(ctx, &watchers, conn, payload.SessionID)
		default:
			conn.sendError(msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	wsh.logger.Debug("websocket client disconnected", "remote", c.RealIP())
	return nil
}

func (wsh *WebSocketHandler) handleUploadInit(conn *wsConn, msg WSMessage) {
	var payload UploadInitPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		conn.sendError(msg.ID, "Invalid init payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}
	if payload.FileName == "" || payload.TotalChunks <= 0 {
		conn.sendError(msg.ID, "fileName and a positive totalChunks are required", "INVALID_PAYLOAD")
		return
	}

	uploadID := uuid.New().String()
	conn.uploads[uploadID] = &wsUpload{
		FileName:    payload.FileName,
		TotalChunks: payload.TotalChunks,
		Received:    make(map[int]bool),
	}

	conn.send(MsgTypeAck, uploadID, nil)
	wsh.logger.Debug("websocket upload initialized", "upload", uploadID,
		"chunks", payload.TotalChunks, "size", payload.TotalSize)
}

func (wsh *WebSocketHandler) handleUploadChunk(conn *wsConn, msg WSMessage) {
	var payload UploadChunkPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		conn.sendError(msg.ID, "Invalid chunk payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	upload, ok := conn.uploads[payload.UploadID]
	if !ok {
		conn.sendError(msg.ID, "Upload session not found: "+payload.UploadID, "SESSION_NOT_FOUND")
		return
	}
	if payload.ChunkIndex < 0 || payload.ChunkIndex >= upload.TotalChunks {
		conn.sendError(msg.ID, fmt.Sprintf("Chunk index %d out of range", payload.ChunkIndex), "INVALID_PAYLOAD")
		return
	}

	chunk, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		conn.sendError(msg.ID, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
		return
	}
	if err := wsh.store.SaveChunk(payload.UploadID, payload.ChunkIndex, bytes.NewReader(chunk)); err != nil {
		conn.sendError(msg.ID, "Failed to save chunk: "+err.Error(), "SAVE_ERROR")
		return
	}

	upload.Received[payload.ChunkIndex] = true
	received := len(upload.Received)
	conn.send(MsgTypeProgress, payload.UploadID, WSProgressResponse{
		UploadID: payload.UploadID,
		Progress: float64(received) / float64(upload.TotalChunks) * 100,
		Message:  fmt.Sprintf("Received chunk %d/%d", received, upload.TotalChunks),
	})
}

// handleUploadComplete stores the assembled document and returns the id
// of the decode session to watch, if one was requested.
func (wsh *WebSocketHandler) handleUploadComplete(conn *wsConn, msg WSMessage) (string, bool) {
	var payload UploadCompletePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		conn.sendError(msg.ID, "Invalid complete payload: "+err.Error(), "INVALID_PAYLOAD")
		return "", false
	}

	upload, ok := conn.uploads[payload.UploadID]
	if !ok {
		conn.sendError(msg.ID, "Upload session not found: "+payload.UploadID, "SESSION_NOT_FOUND")
		return "", false
	}
	if len(upload.Received) != upload.TotalChunks {
		conn.sendError(payload.UploadID, fmt.Sprintf("Missing chunks: got %d, expected %d",
			len(upload.Received), upload.TotalChunks), "INCOMPLETE_UPLOAD")
		return "", false
	}

	info, err := wsh.store.CompleteChunkedUpload(payload.UploadID, upload.FileName, upload.TotalChunks)
	if err != nil {
		conn.sendError(payload.UploadID, "Failed to save file: "+err.Error(), "SAVE_ERROR")
		return "", false
	}
	delete(conn.uploads, payload.UploadID)
	wsh.logger.Info("websocket upload complete", "id", info.ID, "size", info.Size)

	resp := WSCompleteResponse{UploadID: payload.UploadID, FileInfo: info}
	if payload.Decode {
		fileID := info.ID
		sess, err := wsh.sessionMgr.Start(info.ID, info.Name, info.Digest, func() (io.ReadCloser, error) {
			return wsh.store.Open(fileID)
		})
		if err != nil {
			conn.sendError(payload.UploadID, "Failed to start decode: "+err.Error(), "DECODE_ERROR")
			return "", false
		}
		resp.Session = sess
	}
	conn.send(MsgTypeComplete, payload.UploadID, resp)

	if resp.Session == nil {
		return "", false
	}
	return resp.Session.ID, true
}

// watch sends the session status now and again when it finishes.
func (wsh *WebSocketHandler) watch(ctx context.Context, wg *sync.WaitGroup, conn *wsConn, sessionID string) {
	sess, ok := wsh.sessionMgr.GetSession(sessionID)
	if !ok {
		conn.sendError(sessionID, "Session not found: "+sessionID, "SESSION_NOT_FOUND")
		return
	}
	conn.send(MsgTypeStatus, sessionID, sess)
	if sess.IsTerminal() {
		return
	}

	done, ok := wsh.sessionMgr.Done(sessionID)
	if !ok {
		conn.sendError(sessionID, "Session not found: "+sessionID, "SESSION_NOT_FOUND")
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		if sess, ok := wsh.sessionMgr.GetSession(sessionID); ok {
			conn.send(MsgTypeStatus, sessionID, sess)
		}
	}()
}
