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

type InvoiceHandler struct {
	db       *gorm.DB
	verifier *access.Verifier
}

func NewInvoiceHandler(db *gorm.DB, verifier *access.Verifier) *InvoiceHandler {
	return &InvoiceHandler{db: db, verifier: verifier}
}

type CreateInvoiceRequest struct {
	ClientID    string  `json:"client_id"`
	ProjectID   *string `json:"project_id,omitempty"`
	AmountCents int64   `json:"amount_cents"`
	Currency    string  `json:"currency,omitempty"`
	DueAt       string  `json:"due_at"`
}

func (r CreateInvoiceRequest) Validate() map[string]string {
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
	if r.DueAt == "" {
		errors["due_at"] = "Due date is required"
	} else if _, err := time.Parse(time.RFC3339, r.DueAt); err != nil {
		errors["due_at"] = "Due date must be RFC 3339"
	}
	return errors
}

type UpdateInvoiceRequest struct {
	AmountCents *int64  `json:"amount_cents,omitempty"`
	Currency    *string `json:"currency,omitempty"`
	DueAt       *string `json:"due_at,omitempty"`
}

func (r UpdateInvoiceRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.AmountCents != nil && *r.AmountCents <= 0 {
		errors["amount_cents"] = "Amount must be positive"
	}
	if r.Currency != nil && !validation.IsValidCurrency(*r.Currency) {
		errors["currency"] = "Invalid currency code"
	}
	if r.DueAt != nil {
		if _, err := time.Parse(time.RFC3339, *r.DueAt); err != nil {
			errors["due_at"] = "Due date must be RFC 3339"
		}
	}
	return errors
}

type InvoiceResponse struct {
	ID          string  `json:"id"`
	ClientID    string  `json:"client_id"`
	ProjectID   *string `json:"project_id,omitempty"`
	Number      string  `json:"number"`
	Status      string  `json:"status"`
	AmountCents int64   `json:"amount_cents"`
	Currency    string  `json:"currency"`
	DueAt       string  `json:"due_at"`
	PaidAt      *string `json:"paid_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func invoiceToResponse(inv *models.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:          inv.ID.String(),
		ClientID:    inv.ClientID.String(),
		Number:      inv.Number,
		Status:      string(inv.Status),
		AmountCents: inv.AmountCents,
		Currency:    inv.Currency,
		DueAt:       inv.DueAt.Format(time.RFC3339),
		CreatedAt:   inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.ProjectID != nil {
		s := inv.ProjectID.String()
		resp.ProjectID = &s
	}
	if inv.PaidAt != nil {
		s := inv.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &s
	}
	return resp
}

// List handles GET /api/v1/invoices
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := h.db.WithContext(r.Context()).
		Model(&models.Invoice{}).
		Where("company_id = ?", identity.CompanyID)

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if clientID := r.URL.Query().Get("client_id"); clientID != "" {
		id, err := uuid.Parse(clientID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid client_id"})
			return
		}
		query = query.Where("client_id = ?", id)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeInternal(w, "count invoices")
		return
	}

	var invoices []models.Invoice
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&invoices).Error; err != nil {
		writeInternal(w, "list invoices")
		return
	}

	response := make([]InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		response[i] = invoiceToResponse(&inv)
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, pagination))
}

// Create handles POST /api/v1/invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req CreateInvoiceRequest
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

	invoice := models.Invoice{
		CompanyID:   identity.CompanyID,
		ClientID:    clientID,
		Status:      models.InvoiceStatusDraft,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}
	if invoice.Currency == "" {
		invoice.Currency = "EUR"
	}
	invoice.DueAt, _ = time.Parse(time.RFC3339, req.DueAt)

	if req.ProjectID != nil && *req.ProjectID != "" {
		projectID, _ := uuid.Parse(*req.ProjectID)
		if ok, err := h.verifier.UserProject(r.Context(), projectID, identity.CompanyID); err != nil {
			writeInternal(w, "verify project")
			return
		} else if !ok {
			writeNotFound(w, "Project")
			return
		}
		invoice.ProjectID = &projectID
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Invoice{}).
			Unscoped().
			Where("company_id = ?", identity.CompanyID).
			Count(&count).Error; err != nil {
			return err
		}
		invoice.Number = fmt.Sprintf("INV-%s-%04d", time.Now().Format("2006"), count+1)
		return tx.Create(&invoice).Error
	})
	if err != nil {
		writeInternal(w, "create invoice")
		return
	}

	writeJSON(w, http.StatusCreated, invoiceToResponse(&invoice))
}

// Get handles GET /api/v1/invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	invoiceID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var invoice models.Invoice
	err := h.db.WithContext(r.Context()).
		Where("id = ? AND company_id = ?", invoiceID, identity.CompanyID).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeNotFound(w, "Invoice")
			return
		}
		writeInternal(w, "get invoice")
		return
	}

	writeJSON(w, http.StatusOK, invoiceToResponse(&invoice))
}

// Update handles PUT /api/v1/invoices/{id}. Only drafts are mutable;
// once an invoice is sent its terms are fixed and only status
// transitions remain.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	invoiceID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateInvoiceRequest
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
	if req.DueAt != nil {
		dueAt, _ := time.Parse(time.RFC3339, *req.DueAt)
		updates["due_at"] = dueAt
	}
	if len(updates) == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Nothing to update"})
		return
	}

	result := h.db.WithContext(r.Context()).
		Model(&models.Invoice{}).
		Where("id = ? AND company_id = ? AND status = ?",
			invoiceID, identity.CompanyID, models.InvoiceStatusDraft).
		Updates(updates)
	if result.Error != nil {
		writeInternal(w, "update invoice")
		return
	}
	if result.RowsAffected == 0 {
		if ok, err := h.verifier.UserInvoice(r.Context(), invoiceID, identity.CompanyID); err == nil && ok {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Only draft invoices can be updated"})
			return
		}
		writeNotFound(w, "Invoice")
		return
	}

	var invoice models.Invoice
	if err := h.db.WithContext(r.Context()).First(&invoice, "id = ?", invoiceID).Error; err != nil {
		writeInternal(w, "get invoice")
		return
	}
	writeJSON(w, http.StatusOK, invoiceToResponse(&invoice))
}

// Send handles POST /api/v1/invoices/{id}/send: draft -> sent
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.InvoiceStatusDraft, models.InvoiceStatusSent, nil)
}

// MarkPaid handles POST /api/v1/invoices/{id}/pay: sent/overdue -> paid
func (h *InvoiceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	h.transition(w, r, "", models.InvoiceStatusPaid, &now)
}

// transition applies a status change scoped to the caller's company.
// An empty "from" allows any non-paid starting status.
func (h *InvoiceHandler) transition(w http.ResponseWriter, r *http.Request, from, to models.InvoiceStatus, paidAt *time.Time) {
	identity := middleware.GetIdentity(r.Context())

	invoiceID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if ok, err := h.verifier.UserInvoice(r.Context(), invoiceID, identity.CompanyID); err != nil {
		writeInternal(w, "verify invoice")
		return
	} else if !ok {
		writeNotFound(w, "Invoice")
		return
	}

	query := h.db.WithContext(r.Context()).
		Model(&models.Invoice{}).
		Where("id = ?", invoiceID)
	if from != "" {
		query = query.Where("status = ?", from)
	} else {
		query = query.Where("status <> ?", models.InvoiceStatusPaid)
	}

	updates := map[string]interface{}{"status": to}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}

	result := query.Updates(updates)
	if result.Error != nil {
		writeInternal(w, "update invoice")
		return
	}
	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Invalid status transition"})
		return
	}

	var invoice models.Invoice
	if err := h.db.WithContext(r.Context()).First(&invoice, "id = ?", invoiceID).Error; err != nil {
		writeInternal(w, "get invoice")
		return
	}
	writeJSON(w, http.StatusOK, invoiceToResponse(&invoice))
}

// Delete handles DELETE /api/v1/invoices/{id} (draft only, soft delete)
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	invoiceID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	result := h.db.WithContext(r.Context()).
		Where("id = ? AND company_id = ? AND status = ?",
			invoiceID, identity.CompanyID, models.InvoiceStatusDraft).
		Delete(&models.Invoice{})
	if result.Error != nil {
		writeInternal(w, "delete invoice")
		return
	}
	if result.RowsAffected == 0 {
		// Exists but not draft, or not ours, or absent. Only the first
		// case is distinguishable without leaking scope.
		if ok, err := h.verifier.UserInvoice(r.Context(), invoiceID, identity.CompanyID); err == nil && ok {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Only draft invoices can be deleted"})
			return
		}
		writeNotFound(w, "Invoice")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Invoice deleted"})
}
