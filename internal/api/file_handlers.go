package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/imrysn/kmti-data-management/internal/database"
	"github.com/imrysn/kmti-data-management/internal/models"
	"go.uber.org/zap"
)

const allowedFileExtension = ".icd"

type FileListResponse struct {
	Files       []models.File `json:"files"`
	TotalPages  int64         `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Total       int64         `json:"total"`
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func canAccessFile(user *models.User, file *models.File) bool {
	return user.IsAdmin() || file.UploadedBy == user.ID
}

// @Summary      Upload a file
// @Description  Accepts one multipart file (field "file"), .icd only, up to 50 MiB, plus optional metadata fields description, tags, version and project.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "The .icd file"
// @Success      201   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string "Wrong extension, oversize or malformed form"
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /files/upload [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	maxBytes := s.config.Storage.MaxUploadBytes
	// Slack for the multipart framing and metadata fields.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "File too large or malformed multipart form")
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(handler.Filename))
	if ext != allowedFileExtension {
		respondError(w, http.StatusBadRequest, "Only .icd files are allowed")
		return
	}
	if handler.Size > maxBytes {
		respondError(w, http.StatusBadRequest, "File exceeds the maximum allowed size")
		return
	}

	// Collision probability of uuid+timestamp is negligible.
	storedName := fmt.Sprintf("%s-%d%s", uuid.NewString(), time.Now().UnixMilli(), ext)

	if _, err := s.storage.Save(storedName, file); err != nil {
		s.internalError(w, r, err)
		return
	}

	mimeType := handler.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var tags []string
	if raw := r.FormValue("tags"); raw != "" {
		tags = splitTags(raw)
	}

	created, err := s.store.CreateFile(r.Context(), database.CreateFileParams{
		Filename:     storedName,
		OriginalName: handler.Filename,
		FilePath:     filepath.Join(s.storage.BasePath(), storedName),
		FileSize:     handler.Size,
		MimeType:     mimeType,
		UploadedBy:   user.ID,
		Description:  r.FormValue("description"),
		Tags:         tags,
		Version:      r.FormValue("version"),
		Project:      r.FormValue("project"),
	})
	if err != nil {
		// The row was never written; remove the artifact so no orphan remains.
		if cleanupErr := s.storage.Delete(storedName); cleanupErr != nil {
			s.logger.Warn("failed to clean up orphaned upload",
				zap.String("filename", storedName),
				zap.Error(cleanupErr),
			)
		}
		s.internalError(w, r, err)
		return
	}

	s.recordActivity(r, user.ID, models.ActionUpload,
		"File uploaded: "+created.OriginalName, models.ResourceFile, &created.ID, nil)

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "File uploaded successfully",
		"file":    created,
	})
}

// @Summary      List files
// @Description  Pages through active files. Non-admins only see their own uploads. Search matches name, description, project and tags.
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Page size (default 10)"
// @Param        search     query     string  false  "Substring search"
// @Param        sortBy     query     string  false  "createdAt|originalName|fileSize|downloadCount|updatedAt"
// @Param        sortOrder  query     string  false  "asc|desc (default desc)"
// @Success      200        {object}  FileListResponse
// @Failure      401        {object}  map[string]string
// @Router       /files [get]
func (s *Server) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	page, limit, offset := parsePagination(r, 10)

	var ownerID int64
	if !user.IsAdmin() {
		ownerID = user.ID
	}

	params := database.ListFilesParams{
		OwnerID:   ownerID,
		Search:    r.URL.Query().Get("search"),
		SortBy:    r.URL.Query().Get("sortBy"),
		SortOrder: r.URL.Query().Get("sortOrder"),
		Limit:     limit,
		Offset:    offset,
	}

	files, err := s.store.ListFiles(r.Context(), params)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	total, err := s.store.CountFiles(r.Context(), ownerID, params.Search)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, FileListResponse{
		Files:       files,
		TotalPages:  totalPages(total, limit),
		CurrentPage: page,
		Total:       total,
	})
}

// getAccessibleFile resolves {id}, applying the 404/403 rules shared by
// get, download, update and delete.
func (s *Server) getAccessibleFile(w http.ResponseWriter, r *http.Request) *models.File {
	user := GetUserFromContext(r.Context())

	id, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid file ID")
		return nil
	}

	file, err := s.store.GetFileByID(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return nil
	}
	if file == nil {
		respondError(w, http.StatusNotFound, "File not found")
		return nil
	}
	if !canAccessFile(user, file) {
		respondError(w, http.StatusForbidden, "Access denied")
		return nil
	}

	return file
}

// @Summary      Get file by ID
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "File ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /files/{id} [get]
func (s *Server) GetFileHandler(w http.ResponseWriter, r *http.Request) {
	file := s.getAccessibleFile(w, r)
	if file == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"file": file})
}

// @Summary      Download a file
// @Description  Streams the artifact under its original name and increments the download counter.
// @Tags         files
// @Produce      application/octet-stream
// @Security     BearerAuth
// @Param        id   path      int  true  "File ID"
// @Success      200  {file}    file
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string "Row missing, soft-deleted, or artifact absent on disk"
// @Router       /files/{id}/download [get]
func (s *Server) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	file := s.getAccessibleFile(w, r)
	if file == nil {
		return
	}

	if !s.storage.Exists(file.Filename) {
		respondError(w, http.StatusNotFound, "File not found on disk")
		return
	}

	stream, err := s.storage.Open(file.Filename)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	defer stream.Close()

	if err := s.store.IncrementDownloadCount(r.Context(), file.ID); err != nil {
		s.internalError(w, r, err)
		return
	}

	s.recordActivity(r, user.ID, models.ActionDownload,
		"File downloaded: "+file.OriginalName, models.ResourceFile, &file.ID, nil)

	w.Header().Set("Content-Disposition", `attachment; filename="`+file.OriginalName+`"`)
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.FileSize, 10))

	io.Copy(w, stream)
}

type UpdateFileRequest struct {
	Description *string `json:"description"`
	// Tags arrive as a comma-separated string, matching the upload form.
	Tags    *string `json:"tags"`
	Version *string `json:"version"`
	Project *string `json:"project"`
}

// @Summary      Update file metadata
// @Description  Merges the supplied metadata fields over the existing block; omitted fields keep their value.
// @Tags         files
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                true  "File ID"
// @Param        request  body      UpdateFileRequest  true  "Metadata fields"
// @Success      200      {object}  map[string]interface{}
// @Failure      403      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Router       /files/{id} [put]
func (s *Server) UpdateFileHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	file := s.getAccessibleFile(w, r)
	if file == nil {
		return
	}

	var req UpdateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var tags []string
	if req.Tags != nil {
		tags = splitTags(*req.Tags)
	}

	updated, err := s.store.UpdateFileMetadata(r.Context(), database.UpdateFileMetadataParams{
		ID:          file.ID,
		Description: req.Description,
		Tags:        tags,
		Version:     req.Version,
		Project:     req.Project,
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if updated == nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	s.recordActivity(r, user.ID, models.ActionUpdate,
		"File metadata updated: "+updated.OriginalName, models.ResourceFile, &updated.ID, nil)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "File updated successfully",
		"file":    updated,
	})
}

// @Summary      Delete a file
// @Description  Soft delete: the row and the on-disk artifact both remain, but the file disappears from every listing and download.
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "File ID"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /files/{id} [delete]
func (s *Server) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	file := s.getAccessibleFile(w, r)
	if file == nil {
		return
	}

	deleted, err := s.store.SoftDeleteFile(r.Context(), file.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	s.recordActivity(r, user.ID, models.ActionDelete,
		"File deleted: "+file.OriginalName, models.ResourceFile, &file.ID, nil)

	respondJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}

type BulkDeleteRequest struct {
	FileIDs []int64 `json:"fileIds"`
}

// @Summary      Bulk delete files
// @Description  Admin only. Soft-deletes every currently-active file in the list and reports how many rows changed.
// @Tags         files
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      BulkDeleteRequest  true  "File IDs"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Router       /files/bulk-delete [post]
func (s *Server) BulkDeleteFilesHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.FileIDs) == 0 {
		respondError(w, http.StatusBadRequest, "Invalid file IDs")
		return
	}

	deletedCount, err := s.store.BulkDeleteFiles(r.Context(), req.FileIDs)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	s.recordActivity(r, user.ID, models.ActionDelete,
		fmt.Sprintf("Bulk delete: %d files deleted", deletedCount),
		models.ResourceFile, nil, map[string]interface{}{"deletedCount": deletedCount})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":      fmt.Sprintf("%d files deleted successfully", deletedCount),
		"deletedCount": deletedCount,
	})
}
