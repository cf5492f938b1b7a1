// handlers_files_test.go - Tests for document storage handlers
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/imr/Electric8/internal/catalog"
	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/tech"
	"github.com/imr/Electric8/internal/testutil"
)

var testPolicy = FilePolicy{AllowedTypes: []string{".xml"}, AllowDelete: true}

// recordingCatalog records removals
type recordingCatalog struct {
	removed []string
}

func (r *recordingCatalog) Index(ctx context.Context, fileID string, t *tech.Technology) error {
	return nil
}

func (r *recordingCatalog) Remove(ctx context.Context, fileID string) error {
	r.removed = append(r.removed, fileID)
	return nil
}

func (r *recordingCatalog) Find(ctx context.Context, kind string, q catalog.Query) ([]models.CatalogEntry, error) {
	return nil, nil
}

func (r *recordingCatalog) Stats(ctx context.Context) (models.CatalogStats, error) {
	return models.CatalogStats{}, nil
}

func newTestContext(method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func expectAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != status {
		t.Errorf("expected status %d, got %d", status, apiErr.Status)
	}
	if apiErr.Code != code {
		t.Errorf("expected error code %s, got %s", code, apiErr.Code)
	}
}

func TestFileHandler_HandleUploadFile(t *testing.T) {
	tests := []struct {
		name       string
		request    uploadFileRequest
		wantStatus int
		wantErr    bool
		errCode    string
	}{
		{
			name: "valid document upload",
			request: uploadFileRequest{
				Name: "mini.xml",
				Data: base64.StdEncoding.EncodeToString([]byte(testutil.MiniXML)),
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "empty name",
			request: uploadFileRequest{
				Data: base64.StdEncoding.EncodeToString([]byte("content")),
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name: "empty data",
			request: uploadFileRequest{
				Name: "mini.xml",
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name: "invalid base64",
			request: uploadFileRequest{
				Name: "mini.xml",
				Data: "not-valid-base64!!!",
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "BAD_REQUEST",
		},
		{
			name: "disallowed file type",
			request: uploadFileRequest{
				Name: "notes.txt",
				Data: base64.StdEncoding.EncodeToString([]byte("content")),
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			handler := NewFileHandler(store, nil, testPolicy, nil)

			body, _ := json.Marshal(tt.request)
			c, rec := newTestContext(http.MethodPost, "/api/files/upload", bytes.NewReader(body))

			err := handler.HandleUploadFile(c)

			if tt.wantErr {
				expectAPIError(t, err, tt.wantStatus, tt.errCode)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var response models.FileInfo
			if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if response.ID == "" {
				t.Error("expected non-empty ID in response")
			}
			if response.Name != tt.request.Name {
				t.Errorf("expected name %s, got %s", tt.request.Name, response.Name)
			}
		})
	}
}

func TestFileHandler_DuplicateUpload(t *testing.T) {
	store := testutil.NewMockStorage()
	existing := store.AddFile("existing-id", "first.xml", []byte(testutil.MiniXML))
	handler := NewFileHandler(store, nil, testPolicy, nil)

	body, _ := json.Marshal(uploadFileRequest{
		Name: "second.xml",
		Data: base64.StdEncoding.EncodeToString([]byte(testutil.MiniXML)),
	})
	c, rec := newTestContext(http.MethodPost, "/api/files/upload", bytes.NewReader(body))

	if err := handler.HandleUploadFile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for duplicate content, got %d", rec.Code)
	}

	var response models.FileInfo
	json.Unmarshal(rec.Body.Bytes(), &response)
	if response.ID != existing.ID {
		t.Errorf("expected existing document %s, got %s", existing.ID, response.ID)
	}
	if store.GetFileCount() != 1 {
		t.Errorf("expected 1 stored document, got %d", store.GetFileCount())
	}
}

func TestFileHandler_HandleUploadBinary(t *testing.T) {
	store := testutil.NewMockStorage()
	handler := NewFileHandler(store, nil, testPolicy, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "mini.xml")
	part.Write([]byte(testutil.MiniXML))
	mw.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/binary", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.HandleUploadBinary(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}

	var response models.FileInfo
	json.Unmarshal(rec.Body.Bytes(), &response)
	data, err := store.GetFileData(response.ID)
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if string(data) != testutil.MiniXML {
		t.Error("stored content differs from upload")
	}
}

func TestFileHandler_ChunkedUpload(t *testing.T) {
	store := testutil.NewMockStorage()
	handler := NewFileHandler(store, nil, testPolicy, nil)

	doc := []byte(testutil.MiniXML)
	half := len(doc) / 2
	for i, chunk := range [][]byte{doc[:half], doc[half:]} {
		body, _ := json.Marshal(uploadChunkRequest{
			UploadID:   "upload-1",
			ChunkIndex: i,
			Data:       base64.StdEncoding.EncodeToString(chunk),
		})
		c, rec := newTestContext(http.MethodPost, "/api/files/upload/chunk", bytes.NewReader(body))
		if err := handler.HandleUploadChunk(c); err != nil {
			t.Fatalf("chunk %d: unexpected error: %v", i, err)
		}
		if rec.Code != http.StatusAccepted {
			t.Errorf("chunk %d: expected status 202, got %d", i, rec.Code)
		}
	}

	body, _ := json.Marshal(completeUploadRequest{UploadID: "upload-1", Name: "mini.xml", TotalChunks: 2})
	c, rec := newTestContext(http.MethodPost, "/api/files/upload/complete", bytes.NewReader(body))
	if err := handler.HandleCompleteUpload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}

	var response models.FileInfo
	json.Unmarshal(rec.Body.Bytes(), &response)
	data, _ := store.GetFileData(response.ID)
	if !bytes.Equal(data, doc) {
		t.Error("assembled content differs from the original")
	}

	// Completing again fails because the chunks are gone
	c, _ = newTestContext(http.MethodPost, "/api/files/upload/complete", bytes.NewReader(body))
	expectAPIError(t, handler.HandleCompleteUpload(c), http.StatusBadRequest, "BAD_REQUEST")
}

func TestFileHandler_HandleUploadChunk_Validation(t *testing.T) {
	tests := []struct {
		name    string
		request uploadChunkRequest
		errCode string
	}{
		{"missing upload id", uploadChunkRequest{Data: "YQ=="}, "VALIDATION_ERROR"},
		{"missing data", uploadChunkRequest{UploadID: "u"}, "VALIDATION_ERROR"},
		{"negative index", uploadChunkRequest{UploadID: "u", Data: "YQ==", ChunkIndex: -1}, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewFileHandler(testutil.NewMockStorage(), nil, testPolicy, nil)
			body, _ := json.Marshal(tt.request)
			c, _ := newTestContext(http.MethodPost, "/api/files/upload/chunk", bytes.NewReader(body))
			expectAPIError(t, handler.HandleUploadChunk(c), http.StatusBadRequest, tt.errCode)
		})
	}
}

func TestFileHandler_HandleGetRecentFiles(t *testing.T) {
	store := testutil.NewMockStorage()
	handler := NewFileHandler(store, nil, testPolicy, nil)

	c, rec := newTestContext(http.MethodGet, "/api/files/recent", nil)
	if err := handler.HandleGetRecentFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := bytes.TrimSpace(rec.Body.Bytes()); string(body) != "[]" {
		t.Errorf("expected empty list, got %s", body)
	}

	store.AddFile("a", "a.xml", []byte("<a/>"))
	store.AddFile("b", "b.xml", []byte("<b/>"))

	c, rec = newTestContext(http.MethodGet, "/api/files/recent", nil)
	if err := handler.HandleGetRecentFiles(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var files []models.FileInfo
	json.Unmarshal(rec.Body.Bytes(), &files)
	if len(files) != 2 {
		t.Errorf("expected 2 files, got %d", len(files))
	}
}

func TestFileHandler_HandleGetFile(t *testing.T) {
	store := testutil.NewMockStorage()
	store.AddFile("test-id", "mini.xml", []byte(testutil.MiniXML))
	handler := NewFileHandler(store, nil, testPolicy, nil)

	tests := []struct {
		name       string
		fileID     string
		wantStatus int
	}{
		{"existing file", "test-id", http.StatusOK},
		{"missing file", "nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext(http.MethodGet, "/api/files/:id", nil)
			c.SetParamNames("id")
			c.SetParamValues(tt.fileID)

			err := handler.HandleGetFile(c)
			if tt.wantStatus != http.StatusOK {
				expectAPIError(t, err, tt.wantStatus, "NOT_FOUND")
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var info models.FileInfo
			json.Unmarshal(rec.Body.Bytes(), &info)
			if info.Name != "mini.xml" {
				t.Errorf("expected mini.xml, got %s", info.Name)
			}
		})
	}
}

func TestFileHandler_HandleDownloadFile(t *testing.T) {
	store := testutil.NewMockStorage()
	store.AddFile("test-id", "mini.xml", []byte(testutil.MiniXML))
	handler := NewFileHandler(store, nil, testPolicy, nil)

	c, rec := newTestContext(http.MethodGet, "/api/files/:id/content", nil)
	c.SetParamNames("id")
	c.SetParamValues("test-id")

	if err := handler.HandleDownloadFile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != testutil.MiniXML {
		t.Error("downloaded content differs from stored document")
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); got != `attachment; filename="mini.xml"` {
		t.Errorf("unexpected content disposition %q", got)
	}
}

func TestFileHandler_HandleDeleteFile(t *testing.T) {
	tests := []struct {
		name       string
		fileID     string
		policy     FilePolicy
		wantStatus int
		errCode    string
	}{
		{"delete existing file", "test-id", testPolicy, http.StatusNoContent, ""},
		{"delete missing file", "does-not-exist", testPolicy, http.StatusNotFound, "NOT_FOUND"},
		{"deletion disabled", "test-id", FilePolicy{}, http.StatusForbidden, "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			store.AddFile("test-id", "mini.xml", []byte("content"))
			cat := &recordingCatalog{}
			handler := NewFileHandler(store, cat, tt.policy, nil)

			c, rec := newTestContext(http.MethodDelete, "/api/files/:id", nil)
			c.SetParamNames("id")
			c.SetParamValues(tt.fileID)

			err := handler.HandleDeleteFile(c)
			if tt.errCode != "" {
				expectAPIError(t, err, tt.wantStatus, tt.errCode)
				if store.GetFileCount() != 1 {
					t.Error("file should not have been deleted")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if store.GetFileCount() != 0 {
				t.Error("file should have been deleted")
			}
			if len(cat.removed) != 1 || cat.removed[0] != tt.fileID {
				t.Errorf("expected catalog removal of %s, got %v", tt.fileID, cat.removed)
			}
		})
	}
}

func TestFileHandler_HandleRenameFile(t *testing.T) {
	store := testutil.NewMockStorage()
	store.AddFile("test-id", "old.xml", []byte("content"))
	handler := NewFileHandler(store, nil, testPolicy, nil)

	body, _ := json.Marshal(renameFileRequest{Name: "new.xml"})
	c, rec := newTestContext(http.MethodPut, "/api/files/:id", bytes.NewReader(body))
	c.SetParamNames("id")
	c.SetParamValues("test-id")

	if err := handler.HandleRenameFile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var info models.FileInfo
	json.Unmarshal(rec.Body.Bytes(), &info)
	if info.Name != "new.xml" {
		t.Errorf("expected new.xml, got %s", info.Name)
	}

	body, _ = json.Marshal(renameFileRequest{})
	c, _ = newTestContext(http.MethodPut, "/api/files/:id", bytes.NewReader(body))
	c.SetParamNames("id")
	c.SetParamValues("test-id")
	expectAPIError(t, handler.HandleRenameFile(c), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestParseFileTypes(t *testing.T) {
	got := ParseFileTypes(" .XML, tech ,,")
	if len(got) != 2 || got[0] != ".xml" || got[1] != ".tech" {
		t.Errorf("unexpected types %v", got)
	}

	p := FilePolicy{AllowedTypes: got}
	if !p.allows("Demo.Xml") || p.allows("demo.yaml") {
		t.Error("unexpected policy decisions")
	}
	if !(FilePolicy{}).allows("anything.bin") {
		t.Error("empty policy should allow every type")
	}
}
