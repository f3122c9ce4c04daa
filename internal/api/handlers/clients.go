package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/atelierhq/atelier/internal/access"
	"github.com/atelierhq/atelier/internal/api/dto"
	"github.com/atelierhq/atelier/internal/api/middleware"
	"github.com/atelierhq/atelier/internal/api/validation"
	"github.com/atelierhq/atelier/internal/database/models"
)

type ClientHandler struct {
	db       *gorm.DB
	verifier *access.Verifier
}

func NewClientHandler(db *gorm.DB, verifier *access.Verifier) *ClientHandler {
	return &ClientHandler{db: db, verifier: verifier}
}

type CreateClientRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (r CreateClientRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	return errors
}

type UpdateClientRequest struct {
	Email *string `json:"email,omitempty"`
	Name  *string `json:"name,omitempty"`
}

func (r UpdateClientRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Email != nil && !validation.IsValidEmail(*r.Email) {
		errors["email"] = "Invalid email format"
	}
	if r.Name != nil && *r.Name == "" {
		errors["name"] = "Name cannot be empty"
	}
	return errors
}

type ClientResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func clientToResponse(c *models.Client) ClientResponse {
	return ClientResponse{
		ID:        c.ID.String(),
		Email:     c.Email,
		Name:      c.Name,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/v1/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var clients []models.Client
	if err := h.db.WithContext(r.Context()).
		Where("company_id = ?", identity.CompanyID).
		Order("created_at DESC").
		Find(&clients).Error; err != nil {
		writeInternal(w, "list clients")
		return
	}

	response := make([]ClientResponse, len(clients))
	for i, c := range clients {
		response[i] = clientToResponse(&c)
	}
	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	client := models.Client{
		Email:     req.Email,
		Name:      validation.SanitizeName(req.Name),
		CompanyID: identity.CompanyID,
	}
	if err := h.db.WithContext(r.Context()).Create(&client).Error; err != nil {
		writeInternal(w, "create client")
		return
	}

	writeJSON(w, http.StatusCreated, clientToResponse(&client))
}

// Get handles GET /api/v1/clients/{id}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	clientID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var client models.Client
	err := h.db.WithContext(r.Context()).
		Where("id = ? AND company_id = ?", clientID, identity.CompanyID).
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeNotFound(w, "Client")
			return
		}
		writeInternal(w, "get client")
		return
	}

	writeJSON(w, http.StatusOK, clientToResponse(&client))
}

// Update handles PUT /api/v1/clients/{id}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	clientID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Name != nil {
		updates["name"] = validation.SanitizeName(*req.Name)
	}
	if len(updates) == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Nothing to update"})
		return
	}

	result := h.db.WithContext(r.Context()).
		Model(&models.Client{}).
		Where("id = ? AND company_id = ?", clientID, identity.CompanyID).
		Updates(updates)
	if result.Error != nil {
		writeInternal(w, "update client")
		return
	}
	if result.RowsAffected == 0 {
		writeNotFound(w, "Client")
		return
	}

	var client models.Client
	if err := h.db.WithContext(r.Context()).First(&client, "id = ?", clientID).Error; err != nil {
		writeInternal(w, "get client")
		return
	}
	writeJSON(w, http.StatusOK, clientToResponse(&client))
}

// Delete handles DELETE /api/v1/clients/{id} (soft delete)
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	clientID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	result := h.db.WithContext(r.Context()).
		Where("id = ? AND company_id = ?", clientID, identity.CompanyID).
		Delete(&models.Client{})
	if result.Error != nil {
		writeInternal(w, "delete client")
		return
	}
	if result.RowsAffected == 0 {
		writeNotFound(w, "Client")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Client deleted"})
}

// GrantProject handles POST /api/v1/clients/{id}/projects/{projectID}:
// creates the membership row that opens the project to the client.
func (h *ClientHandler) GrantProject(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	clientID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	projectID, ok := parseIDParam(w, r, "projectID")
	if !ok {
		return
	}

	// Both sides of the membership must be in the caller's company.
	if ok, err := h.verifier.UserClient(r.Context(), clientID, identity.CompanyID); err != nil {
		writeInternal(w, "verify client")
		return
	} else if !ok {
		writeNotFound(w, "Client")
		return
	}
	if ok, err := h.verifier.UserProject(r.Context(), projectID, identity.CompanyID); err != nil {
		writeInternal(w, "verify project")
		return
	} else if !ok {
		writeNotFound(w, "Project")
		return
	}

	membership := models.ClientProject{ClientID: clientID, ProjectID: projectID}
	err := h.db.WithContext(r.Context()).
		Where(&membership).
		FirstOrCreate(&membership).Error
	if err != nil {
		writeInternal(w, "grant project access")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Project access granted"})
}

// RevokeProject handles DELETE /api/v1/clients/{id}/projects/{projectID}
func (h *ClientHandler) RevokeProject(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	clientID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	projectID, ok := parseIDParam(w, r, "projectID")
	if !ok {
		return
	}

	if ok, err := h.verifier.UserClient(r.Context(), clientID, identity.CompanyID); err != nil {
		writeInternal(w, "verify client")
		return
	} else if !ok {
		writeNotFound(w, "Client")
		return
	}

	// Removing an absent membership is a no-op, not an error.
	err := h.db.WithContext(r.Context()).
		Where("client_id = ? AND project_id = ?", clientID, projectID).
		Delete(&models.ClientProject{}).Error
	if err != nil {
		writeInternal(w, "revoke project access")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Project access revoked"})
}
