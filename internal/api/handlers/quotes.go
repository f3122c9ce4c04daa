package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier/internal/access"
	"github.com/atelierhq/atelier/internal/api/dto"
	"github.com/atelierhq/atelier/internal/api/middleware"
	"github.com/atelierhq/atelier/internal/api/validation"
	"github.com/atelierhq/atelier/internal/database/models"
)

type QuoteHandler struct {
	db       *gorm.DB
	verifier *access.Verifier
}

func NewQuoteHandler(db *gorm.DB, verifier *access.Verifier) *QuoteHandler {
	return &QuoteHandler{db: db, verifier: verifier}
}

type CreateQuoteRequest struct {
	ClientID    string  `json:"client_id"`
	ProjectID   *string `json:"project_id,omitempty"`
	AmountCents int64   `json:"amount_cents"`
	Currency    string  `json:"currency,omitempty"`
	ValidUntil  string  `json:"valid_until"`
}

func (r CreateQuoteRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.ClientID == "" {
		errors["client_id"] = "Client is required"
	} else if !validation.IsValidUUID(r.ClientID) {
		errors["client_id"] = "Invalid client ID format"
	}
	if r.ProjectID != nil && *r.ProjectID != "" && !validation.IsValidUUID(*r.ProjectID) {
		errors["project_id"] = "Invalid project ID format"
	}
	if r.AmountCents <= 0 {
		errors["amount_cents"] = "Amount must be positive"
	}
	if r.Currency != "" && !validation.IsValidCurrency(r.Currency) {
		errors["currency"] = "Invalid currency code"
	}
	if r.ValidUntil == "" {
		errors["valid_until"] = "Valid-until date is required"
	} else if _, err := time.Parse(time.RFC3339, r.ValidUntil); err != nil {
		errors["valid_until"] = "Valid-until date must be RFC 3339"
	}
	return errors
}

type UpdateQuoteRequest struct {
	AmountCents *int64  `json:"amount_cents,omitempty"`
	Currency    *string `json:"currency,omitempty"`
	ValidUntil  *string `json:"valid_until,omitempty"`
}

func (r UpdateQuoteRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.AmountCents != nil && *r.AmountCents <= 0 {
		errors["amount_cents"] = "Amount must be positive"
	}
	if r.Currency != nil && !validation.IsValidCurrency(*r.Currency) {
		errors["currency"] = "Invalid currency code"
	}
	if r.ValidUntil != nil {
		if _, err := time.Parse(time.RFC3339, *r.ValidUntil); err != nil {
			errors["valid_until"] = "Valid-until date must be RFC 3339"
		}
	}
	return errors
}

type QuoteResponse struct {
	ID          string  `json:"id"`
	ClientID    string  `json:"client_id"`
	ProjectID   *string `json:"project_id,omitempty"`
	Number      string  `json:"number"`
	Status      string  `json:"status"`
	AmountCents int64   `json:"amount_cents"`
	Currency    string  `json:"currency"`
	ValidUntil  string  `json:"valid_until"`
	DecidedAt   *string `json:"decided_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func quoteToResponse(q *models.Quote) QuoteResponse {
	resp := QuoteResponse{
		ID:          q.ID.String(),
		ClientID:    q.ClientID.String(),
		Number:      q.Number,
		Status:      string(q.Status),
		AmountCents: q.AmountCents,
		Currency:    q.Currency,
		ValidUntil:  q.ValidUntil.Format(time.RFC3339),
		CreatedAt:   q.CreatedAt.Format(time.RFC3339),
	}
	if q.ProjectID != nil {
		s := q.ProjectID.String()
		resp.ProjectID = &s
	}
	if q.DecidedAt != nil {
		s := q.DecidedAt.Format(time.RFC3339)
		resp.DecidedAt = &s
	}
	return resp
}

// List handles GET /api/v1/quotes
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := h.db.WithContext(r.Context()).
		Model(&models.Quote{}).
		Where("company_id = ?", identity.CompanyID)

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeInternal(w, "count quotes")
		return
	}

	var quotes []models.Quote
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&quotes).Error; err != nil {
		writeInternal(w, "list quotes")
		return
	}

	response := make([]QuoteResponse, len(quotes))
	for i, q := range quotes {
		response[i] = quoteToResponse(&q)
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, pagination))
}

// Create handles POST /api/v1/quotes
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req CreateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	clientID, _ := uuid.Parse(req.ClientID)
	if ok, err := h.verifier.UserClient(r.Context(), clientID, identity.CompanyID); err != nil {
		writeInternal(w, "verify client")
		return
	} else if !ok {
		writeNotFound(w, "Client")
		return
	}

	quote := models.Quote{
		CompanyID:   identity.CompanyID,
		ClientID:    clientID,
		Status:      models.QuoteStatusDraft,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}
	if quote.Currency == "" {
		quote.Currency = "EUR"
	}
	quote.ValidUntil, _ = time.Parse(time.RFC3339, req.ValidUntil)

	if req.ProjectID != nil && *req.ProjectID != "" {
		projectID, _ := uuid.Parse(*req.ProjectID)
		if ok, err := h.verifier.UserProject(r.Context(), projectID, identity.CompanyID); err != nil {
			writeInternal(w, "verify project")
			return
		} else if !ok {
			writeNotFound(w, "Project")
			return
		}
		quote.ProjectID = &projectID
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Quote{}).
			Unscoped().
			Where("company_id = ?", identity.CompanyID).
			Count(&count).Error; err != nil {
			return err
		}
		quote.Number = fmt.Sprintf("QUO-%s-%04d", time.Now().Format("2006"), count+1)
		return tx.Create(&quote).Error
	})
	if err != nil {
		writeInternal(w, "create quote")
		return
	}

	writeJSON(w, http.StatusCreated, quoteToResponse(&quote))
}

// Get handles GET /api/v1/quotes/{id}
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	quoteID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var quote models.Quote
	err := h.db.WithContext(r.Context()).
		Where("id = ? AND company_id = ?", quoteID, identity.CompanyID).
		First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeNotFound(w, "Quote")
			return
		}
		writeInternal(w, "get quote")
		return
	}

	writeJSON(w, http.StatusOK, quoteToResponse(&quote))
}

// Update handles PUT /api/v1/quotes/{id}. Only drafts are mutable;
// a sent quote is the offer the client decides on.
func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	quoteID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	updates := map[string]interface{}{}
	if req.AmountCents != nil {
		updates["amount_cents"] = *req.AmountCents
	}
	if req.Currency != nil {
		updates["currency"] = *req.Currency
	}
	if req.ValidUntil != nil {
		validUntil, _ := time.Parse(time.RFC3339, *req.ValidUntil)
		updates["valid_until"] = validUntil
	}
	if len(updates) == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Nothing to update"})
		return
	}

	result := h.db.WithContext(r.Context()).
		Model(&models.Quote{}).
		Where("id = ? AND company_id = ? AND status = ?",
			quoteID, identity.CompanyID, models.QuoteStatusDraft).
		Updates(updates)
	if result.Error != nil {
		writeInternal(w, "update quote")
		return
	}
	if result.RowsAffected == 0 {
		if ok, err := h.verifier.UserQuote(r.Context(), quoteID, identity.CompanyID); err == nil && ok {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Only draft quotes can be updated"})
			return
		}
		writeNotFound(w, "Quote")
		return
	}

	var quote models.Quote
	if err := h.db.WithContext(r.Context()).First(&quote, "id = ?", quoteID).Error; err != nil {
		writeInternal(w, "get quote")
		return
	}
	writeJSON(w, http.StatusOK, quoteToResponse(&quote))
}

// Send handles POST /api/v1/quotes/{id}/send: draft -> sent
func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	quoteID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if ok, err := h.verifier.UserQuote(r.Context(), quoteID, identity.CompanyID); err != nil {
		writeInternal(w, "verify quote")
		return
	} else if !ok {
		writeNotFound(w, "Quote")
		return
	}

	result := h.db.WithContext(r.Context()).
		Model(&models.Quote{}).
		Where("id = ? AND status = ?", quoteID, models.QuoteStatusDraft).
		Update("status", models.QuoteStatusSent)
	if result.Error != nil {
		writeInternal(w, "send quote")
		return
	}
	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Only draft quotes can be sent"})
		return
	}

	var quote models.Quote
	if err := h.db.WithContext(r.Context()).First(&quote, "id = ?", quoteID).Error; err != nil {
		writeInternal(w, "get quote")
		return
	}
	writeJSON(w, http.StatusOK, quoteToResponse(&quote))
}

// Delete handles DELETE /api/v1/quotes/{id} (draft only, soft delete)
func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	quoteID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	result := h.db.WithContext(r.Context()).
		Where("id = ? AND company_id = ? AND status = ?",
			quoteID, identity.CompanyID, models.QuoteStatusDraft).
		Delete(&models.Quote{})
	if result.Error != nil {
		writeInternal(w, "delete quote")
		return
	}
	if result.RowsAffected == 0 {
		if ok, err := h.verifier.UserQuote(r.Context(), quoteID, identity.CompanyID); err == nil && ok {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Only draft quotes can be deleted"})
			return
		}
		writeNotFound(w, "Quote")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Quote deleted"})
}
