package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/atelierhq/atelier/internal/access"
	"github.com/atelierhq/atelier/internal/api/dto"
	"github.com/atelierhq/atelier/internal/api/middleware"
	"github.com/atelierhq/atelier/internal/database/models"
	"github.com/atelierhq/atelier/internal/storage"
)

const maxFileSize = 32 << 20 // 32 MiB

type FileHandler struct {
	db       *gorm.DB
	verifier *access.Verifier
	store    storage.FileStore
}

func NewFileHandler(db *gorm.DB, verifier *access.Verifier, store storage.FileStore) *FileHandler {
	return &FileHandler{db: db, verifier: verifier, store: store}
}

type FileResponse struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	CreatedAt   string `json:"created_at"`
}

func fileToResponse(f *models.ProjectFile) FileResponse {
	return FileResponse{
		ID:          f.ID.String(),
		ProjectID:   f.ProjectID.String(),
		Name:        f.Name,
		Size:        f.Size,
		ContentType: f.ContentType,
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/v1/projects/{id}/files
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	projectID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if ok, err := h.verifier.UserProject(r.Context(), projectID, identity.CompanyID); err != nil {
		writeInternal(w, "verify project")
		return
	} else if !ok {
		writeNotFound(w, "Project")
		return
	}

	var files []models.ProjectFile
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&files).Error; err != nil {
		writeInternal(w, "list files")
		return
	}

	response := make([]FileResponse, len(files))
	for i, f := range files {
		response[i] = fileToResponse(&f)
	}
	writeJSON(w, http.StatusOK, response)
}

// Upload handles POST /api/v1/projects/{id}/files (multipart form,
// field "file")
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	projectID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if ok, err := h.verifier.UserProject(r.Context(), projectID, identity.CompanyID); err != nil {
		writeInternal(w, "verify project")
		return
	} else if !ok {
		writeNotFound(w, "Project")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFileSize)
	if err := r.ParseMultipartForm(maxFileSize); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid or oversized upload"})
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Missing file field"})
		return
	}
	defer part.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	file := models.ProjectFile{
		ProjectID:   projectID,
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: contentType,
		UploadedBy:  identity.UserID,
	}

	// Create the row first so the ID exists for the storage key; roll
	// it back if the object store rejects the content.
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&file).Error; err != nil {
			return err
		}
		key := storage.FileKey(identity.CompanyID, projectID, file.ID)
		if err := tx.Model(&file).Update("storage_key", key).Error; err != nil {
			return err
		}
		file.StorageKey = key
		return h.store.Put(r.Context(), key, contentType, part)
	})
	if err != nil {
		writeInternal(w, "upload file")
		return
	}

	writeJSON(w, http.StatusCreated, fileToResponse(&file))
}

// Download handles GET /api/v1/projects/{id}/files/{fileID}
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	projectID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	fileID, ok := parseIDParam(w, r, "fileID")
	if !ok {
		return
	}

	if ok, err := h.verifier.ProjectFile(r.Context(), fileID, projectID, identity.CompanyID); err != nil {
		writeInternal(w, "verify file")
		return
	} else if !ok {
		writeNotFound(w, "File")
		return
	}

	var file models.ProjectFile
	if err := h.db.WithContext(r.Context()).First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeNotFound(w, "File")
			return
		}
		writeInternal(w, "get file")
		return
	}

	body, err := h.store.Get(r.Context(), file.StorageKey)
	if err != nil {
		writeInternal(w, "download file")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	_, _ = io.Copy(w, body)
}

// Delete handles DELETE /api/v1/projects/{id}/files/{fileID}
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	projectID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	fileID, ok := parseIDParam(w, r, "fileID")
	if !ok {
		return
	}

	if ok, err := h.verifier.ProjectFile(r.Context(), fileID, projectID, identity.CompanyID); err != nil {
		writeInternal(w, "verify file")
		return
	} else if !ok {
		writeNotFound(w, "File")
		return
	}

	var file models.ProjectFile
	if err := h.db.WithContext(r.Context()).First(&file, "id = ?", fileID).Error; err != nil {
		writeNotFound(w, "File")
		return
	}

	// Losing the object after the row is gone is acceptable; the
	// reverse is not. Delete the object first and surface failures.
	if err := h.store.Delete(r.Context(), file.StorageKey); err != nil {
		writeInternal(w, "delete file")
		return
	}
	if err := h.db.WithContext(r.Context()).Delete(&file).Error; err != nil {
		writeInternal(w, "delete file")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "File deleted"})
}
