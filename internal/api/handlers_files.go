// handlers_files.go - Technology document storage handlers
package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/storage"
)

// FilePolicy restricts what the file handlers accept.
type FilePolicy struct {
	// AllowedTypes lists accepted file extensions. Empty accepts all.
	AllowedTypes []string
	AllowDelete  bool
}

// ParseFileTypes splits a comma separated extension list such as ".xml,.tech".
func ParseFileTypes(list string) []string {
	var types []string
	for _, t := range strings.Split(list, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		types = append(types, t)
	}
	return types
}

func (p FilePolicy) allows(name string) bool {
	if len(p.AllowedTypes) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, t := range p.AllowedTypes {
		if ext == t {
			return true
		}
	}
	return false
}

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store   storage.Store
	catalog Catalog
	policy  FilePolicy
	logger  *slog.Logger
}

// NewFileHandler creates a new file handler instance. cat may be nil.
func NewFileHandler(store storage.Store, cat Catalog, policy FilePolicy, logger *slog.Logger) FileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileHandlerImpl{
		store:   store,
		catalog: cat,
		policy:  policy,
		logger:  logger,
	}
}

// HandleUploadFile accepts a document as base64 JSON and saves it to storage
func (h *FileHandlerImpl) HandleUploadFile(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}
	if !h.policy.allows(req.Name) {
		return NewBadRequestError("file type not allowed: "+req.Name, nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	return h.saveDeduplicated(c, req.Name, decoded)
}

// HandleUploadBinary accepts a raw document upload (multipart/form-data)
func (h *FileHandlerImpl) HandleUploadBinary(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if !h.policy.allows(file.Filename) {
		return NewBadRequestError("file type not allowed: "+file.Filename, nil)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return NewBadRequestError("failed to read uploaded file", err)
	}

	return h.saveDeduplicated(c, file.Filename, data)
}

// saveDeduplicated stores data unless a document with the same content is
// already stored, in which case that document is returned with 200.
func (h *FileHandlerImpl) saveDeduplicated(c echo.Context, name string, data []byte) error {
	digest := storage.Digest(data)
	existing, err := h.store.FindByDigest(digest)
	if err == nil {
		h.logger.Debug("duplicate upload", "name", name, "existing", existing.ID)
		return c.JSON(http.StatusOK, existing)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return NewInternalError("failed to look up file", err)
	}

	info, err := h.store.Save(name, bytes.NewReader(data))
	if err != nil {
		return NewInternalError("failed to save file", err)
	}
	h.logger.Info("file uploaded", "id", info.ID, "name", info.Name, "size", info.Size)

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadChunk accepts a single chunk of a chunked upload
func (h *FileHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunk(req.UploadID, req.ChunkIndex, bytes.NewReader(decoded)); err != nil {
		return NewBadRequestError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload assembles a chunked upload into a stored document
func (h *FileHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}
	if !h.policy.allows(req.Name) {
		return NewBadRequestError("file type not allowed: "+req.Name, nil)
	}

	info, err := h.store.CompleteChunkedUpload(req.UploadID, req.Name, req.TotalChunks)
	if err != nil {
		return NewBadRequestError("failed to complete upload", err)
	}
	h.logger.Info("chunked upload complete", "id", info.ID, "name", info.Name, "chunks", req.TotalChunks)

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles returns the most recently uploaded documents
func (h *FileHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	if files == nil {
		files = []*models.FileInfo{}
	}

	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific document
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return storeError("file", id, err)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDownloadFile streams the original document content
func (h *FileHandlerImpl) HandleDownloadFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return storeError("file", id, err)
	}
	rc, err := h.store.Open(id)
	if err != nil {
		return storeError("file", id, err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filepath.Base(info.Name)+`"`)
	return c.Stream(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, rc)
}

// HandleDeleteFile deletes a document and its catalog entries
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if !h.policy.AllowDelete {
		return NewForbiddenError("file deletion is disabled")
	}

	if err := h.store.Delete(id); err != nil {
		return storeError("file", id, err)
	}

	if h.catalog != nil {
		if err := h.catalog.Remove(c.Request().Context(), id); err != nil {
			h.logger.Warn("failed to remove catalog entries", "id", id, "error", err)
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the name of a document
func (h *FileHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return storeError("file", id, err)
	}

	return c.JSON(http.StatusOK, info)
}

// Request types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type uploadChunkRequest struct {
	UploadID   string `json:"uploadId"`
	ChunkIndex int    `json:"chunkIndex"`
	Data       string `json:"data"` // Base64-encoded chunk
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	if r.ChunkIndex < 0 {
		return NewBadRequestError("chunkIndex must not be negative", nil)
	}
	return nil
}

type completeUploadRequest struct {
	UploadID    string `json:"uploadId"`
	Name        string `json:"name"`
	TotalChunks int    `json:"totalChunks"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}
