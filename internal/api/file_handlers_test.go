package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/imrysn/kmti-data-management/internal/models"
	"github.com/imrysn/kmti-data-management/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fileEnvelope struct {
	Message string       `json:"message"`
	File    *models.File `json:"file"`
}

func uploadTestFile(t *testing.T, token string, fields map[string]string) *models.File {
	t.Helper()

	name := uniqueName("design") + ".icd"
	rr := uploadRequest(t, token, name, "icd-payload-data", fields)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body fileEnvelope
	decodeBody(t, rr, &body)
	require.NotNil(t, body.File)
	return body.File
}

func TestUploadFile_Success(t *testing.T) {
	rr := uploadRequest(t, testUserToken, "assembly-rev2.icd", "binary-ish content", map[string]string{
		"description": "Main assembly",
		"tags":        "assembly, rev2 , ",
		"version":     "2.0",
		"project":     "KMTI-100",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body fileEnvelope
	decodeBody(t, rr, &body)

	require.Equal(t, "File uploaded successfully", body.Message)
	file := body.File
	require.Equal(t, "assembly-rev2.icd", file.OriginalName)
	require.NotEqual(t, file.OriginalName, file.Filename)
	require.Equal(t, int64(len("binary-ish content")), file.FileSize)
	require.Equal(t, "Main assembly", file.Metadata.Description)
	require.Equal(t, []string{"assembly", "rev2"}, file.Metadata.Tags)
	require.Equal(t, "2.0", file.Metadata.Version)
	require.Equal(t, "KMTI-100", file.Metadata.Project)
	require.True(t, file.IsActive)
	require.Zero(t, file.DownloadCount)
	require.NotNil(t, file.Uploader)
	require.Equal(t, testUser.ID, file.Uploader.ID)

	// The artifact landed on disk under its stored name.
	require.True(t, testStorage.Exists(file.Filename))
}

func TestUploadFile_RejectsWrongExtension(t *testing.T) {
	rr := uploadRequest(t, testUserToken, "notes.txt", "plain text", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "Only .icd files are allowed")
}

func TestUploadFile_RejectsMissingFile(t *testing.T) {
	rr := doJSON(t, http.MethodPost, "/api/files/upload", testUserToken, map[string]string{})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadFile_CleansUpWhenInsertFails(t *testing.T) {
	// Isolated storage dir so the only possible artifact is this test's.
	isolated, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	srv := NewServer(testServer.config, testServer.store, isolated, zap.NewNop())

	// A user id that exists in no users row makes the insert fail on the
	// uploaded_by foreign key, after the artifact has hit the disk.
	ghost := &models.User{ID: 999999999, Username: "ghost", Role: models.RoleUser, IsActive: true}

	body, contentType := multipartBody(t, "orphan.icd", "never persisted", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(context.WithValue(req.Context(), userContextKey, ghost))

	rr := httptest.NewRecorder()
	srv.UploadFileHandler(rr, req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	// No row was written and the artifact was removed again.
	var count int64
	require.NoError(t, testPool.QueryRow(context.Background(),
		`SELECT count(*) FROM files WHERE original_name = 'orphan.icd'`).Scan(&count))
	require.Zero(t, count)

	entries, err := os.ReadDir(isolated.BasePath())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestGetFile_OwnerAndAdmin(t *testing.T) {
	file := uploadTestFile(t, testUserToken, nil)

	for _, token := range []string{testUserToken, testAdminToken} {
		rr := doRequest(t, http.MethodGet, fmt.Sprintf("/api/files/%d", file.ID), token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestGetFile_ForbiddenForStranger(t *testing.T) {
	file := uploadTestFile(t, testAdminToken, nil)

	rr := doRequest(t, http.MethodGet, fmt.Sprintf("/api/files/%d", file.ID), testUserToken, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Body.String(), "Access denied")
}

func TestGetFile_NotFound(t *testing.T) {
	rr := doRequest(t, http.MethodGet, "/api/files/999999999", testAdminToken, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, http.MethodGet, "/api/files/abc", testAdminToken, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListFiles_ScopedToOwner(t *testing.T) {
	mine := uploadTestFile(t, testUserToken, nil)
	other := uploadTestFile(t, testAdminToken, nil)

	rr := doRequest(t, http.MethodGet, "/api/files/?limit=100", testUserToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body FileListResponse
	decodeBody(t, rr, &body)

	ids := make(map[int64]bool)
	for _, f := range body.Files {
		ids[f.ID] = true
		require.NotNil(t, f.Uploader)
		require.Equal(t, testUser.ID, f.Uploader.ID)
	}
	require.True(t, ids[mine.ID])
	require.False(t, ids[other.ID])
}

func TestListFiles_SearchByProject(t *testing.T) {
	needle := uniqueName("proj")
	file := uploadTestFile(t, testUserToken, map[string]string{"project": needle})
	uploadTestFile(t, testUserToken, map[string]string{"project": "unrelated"})

	rr := doRequest(t, http.MethodGet, "/api/files/?search="+needle, testUserToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body FileListResponse
	decodeBody(t, rr, &body)
	require.Equal(t, int64(1), body.Total)
	require.Len(t, body.Files, 1)
	require.Equal(t, file.ID, body.Files[0].ID)
}

func TestDownloadFile_StreamsAndCounts(t *testing.T) {
	file := uploadTestFile(t, testUserToken, nil)

	rr := doRequest(t, http.MethodGet, fmt.Sprintf("/api/files/%d/download", file.ID), testUserToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "icd-payload-data", rr.Body.String())
	require.Contains(t, rr.Header().Get("Content-Disposition"), file.OriginalName)

	check := doRequest(t, http.MethodGet, fmt.Sprintf("/api/files/%d", file.ID), testUserToken, nil)
	var body fileEnvelope
	decodeBody(t, check, &body)
	require.Equal(t, int64(1), body.File.DownloadCount)
}

func TestDownloadFile_MissingOnDisk(t *testing.T) {
	file := uploadTestFile(t, testUserToken, nil)
	require.NoError(t, testStorage.Delete(file.Filename))

	rr := doRequest(t, http.MethodGet, fmt.Sprintf("/api/files/%d/download", file.ID), testUserToken, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "File not found on disk")
}

func TestUpdateFile_MergesMetadata(t *testing.T) {
	file := uploadTestFile(t, testUserToken, map[string]string{
		"description": "before",
		"version":     "1.0",
	})

	newDescription := "after"
	newTags := "updated,metadata"
	rr := doJSON(t, http.MethodPut, fmt.Sprintf("/api/files/%d", file.ID), testUserToken, UpdateFileRequest{
		Description: &newDescription,
		Tags:        &newTags,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var body fileEnvelope
	decodeBody(t, rr, &body)
	require.Equal(t, "after", body.File.Metadata.Description)
	require.Equal(t, []string{"updated", "metadata"}, body.File.Metadata.Tags)
	// Omitted fields survive untouched.
	require.Equal(t, "1.0", body.File.Metadata.Version)
}

func TestDeleteFile_SoftDelete(t *testing.T) {
	file := uploadTestFile(t, testUserToken, nil)

	rr := doRequest(t, http.MethodDelete, fmt.Sprintf("/api/files/%d", file.ID), testUserToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "File deleted successfully")

	// Gone from the API.
	rr = doRequest(t, http.MethodGet, fmt.Sprintf("/api/files/%d", file.ID), testUserToken, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	// But the row and the artifact survive.
	var isActive bool
	err := testPool.QueryRow(context.Background(),
		`SELECT is_active FROM files WHERE id = $1`, file.ID).Scan(&isActive)
	require.NoError(t, err)
	require.False(t, isActive)
	require.True(t, testStorage.Exists(file.Filename))
}

func TestBulkDeleteFiles_AdminOnly(t *testing.T) {
	first := uploadTestFile(t, testAdminToken, nil)
	second := uploadTestFile(t, testAdminToken, nil)

	// Non-admins never reach the handler.
	rr := doJSON(t, http.MethodPost, "/api/files/bulk-delete", testUserToken, BulkDeleteRequest{
		FileIDs: []int64{first.ID},
	})
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSON(t, http.MethodPost, "/api/files/bulk-delete", testAdminToken, BulkDeleteRequest{
		FileIDs: []int64{first.ID, second.ID, 999999999},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Message      string `json:"message"`
		DeletedCount int64  `json:"deletedCount"`
	}
	decodeBody(t, rr, &body)
	require.Equal(t, int64(2), body.DeletedCount)
	require.Equal(t, "2 files deleted successfully", body.Message)
}

func TestBulkDeleteFiles_EmptyList(t *testing.T) {
	rr := doJSON(t, http.MethodPost, "/api/files/bulk-delete", testAdminToken, BulkDeleteRequest{})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
