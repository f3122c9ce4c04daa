package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/atelierhq/atelier/internal/api/dto"
	"github.com/atelierhq/atelier/internal/api/middleware"
	"github.com/atelierhq/atelier/internal/api/validation"
	"github.com/atelierhq/atelier/internal/database/models"
)

type ProjectHandler struct {
	db *gorm.DB
}

func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{db: db}
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (r CreateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	return errors
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (r UpdateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil && *r.Name == "" {
		errors["name"] = "Name cannot be empty"
	}
	if r.Status != nil {
		switch models.ProjectStatus(*r.Status) {
		case models.ProjectStatusActive, models.ProjectStatusOnHold, models.ProjectStatusCompleted:
		default:
			errors["status"] = "Invalid status"
		}
	}
	return errors
}

type ProjectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func projectToResponse(p *models.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/v1/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := h.db.WithContext(r.Context()).
		Model(&models.Project{}).
		Where("company_id = ?", identity.CompanyID)

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeInternal(w, "count projects")
		return
	}

	var projects []models.Project
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&projects).Error; err != nil {
		writeInternal(w, "list projects")
		return
	}

	response := make([]ProjectResponse, len(projects))
	for i, p := range projects {
		response[i] = projectToResponse(&p)
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, pagination))
}

// Create handles POST /api/v1/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	project := models.Project{
		CompanyID:   identity.CompanyID,
		Name:        validation.SanitizeName(req.Name),
		Description: req.Description,
		Status:      models.ProjectStatusActive,
	}
	if err := h.db.WithContext(r.Context()).Create(&project).Error; err != nil {
		writeInternal(w, "create project")
		return
	}

	writeJSON(w, http.StatusCreated, projectToResponse(&project))
}

// Get handles GET /api/v1/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	projectID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var project models.Project
	err := h.db.WithContext(r.Context()).
		Where("id = ? AND company_id = ?", projectID, identity.CompanyID).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeNotFound(w, "Project")
			return
		}
		writeInternal(w, "get project")
		return
	}

	writeJSON(w, http.StatusOK, projectToResponse(&project))
}

// Update handles PUT /api/v1/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	projectID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = validation.SanitizeName(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Nothing to update"})
		return
	}

	result := h.db.WithContext(r.Context()).
		Model(&models.Project{}).
		Where("id = ? AND company_id = ?", projectID, identity.CompanyID).
		Updates(updates)
	if result.Error != nil {
		writeInternal(w, "update project")
		return
	}
	if result.RowsAffected == 0 {
		writeNotFound(w, "Project")
		return
	}

	var project models.Project
	if err := h.db.WithContext(r.Context()).First(&project, "id = ?", projectID).Error; err != nil {
		writeInternal(w, "get project")
		return
	}
	writeJSON(w, http.StatusOK, projectToResponse(&project))
}

// Archive handles DELETE /api/v1/projects/{id} (soft delete)
func (h *ProjectHandler) Archive(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	projectID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	result := h.db.WithContext(r.Context()).
		Where("id = ? AND company_id = ?", projectID, identity.CompanyID).
		Delete(&models.Project{})
	if result.Error != nil {
		writeInternal(w, "archive project")
		return
	}
	if result.RowsAffected == 0 {
		writeNotFound(w, "Project")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Project archived"})
}
