package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/atelierhq/atelier/internal/access"
	"github.com/atelierhq/atelier/internal/api/dto"
	"github.com/atelierhq/atelier/internal/api/middleware"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/database/models"
	"github.com/atelierhq/atelier/internal/portal"
	"github.com/atelierhq/atelier/internal/tasks"
	"github.com/hibiken/asynq"
)

// TaskEnqueuer is the slice of asynq.Client the portal handler needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PortalHandler owns the client-facing surface: magic-link login and
// the read-mostly portal views. Portal views are reachable by both
// staff and clients; the identity kind decides the scope of every
// query.
type PortalHandler struct {
	db         *gorm.DB
	sessions   *portal.SessionStore
	jwt        *auth.JWTService
	verifier   *access.Verifier
	enqueuer   TaskEnqueuer
	sessionTTL time.Duration
}

func NewPortalHandler(db *gorm.DB, sessions *portal.SessionStore, jwt *auth.JWTService, verifier *access.Verifier, enqueuer TaskEnqueuer, sessionTTL time.Duration) *PortalHandler {
	return &PortalHandler{
		db:         db,
		sessions:   sessions,
		jwt:        jwt,
		verifier:   verifier,
		enqueuer:   enqueuer,
		sessionTTL: sessionTTL,
	}
}

// Login handles POST /api/v1/portal/login: requests a magic link.
// The response is 202 whether or not the email matched a client, so
// the endpoint cannot be used to enumerate accounts.
func (h *PortalHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.PortalLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	accepted := dto.SuccessResponse{Message: "If the address is known, a login link has been sent"}

	var client models.Client
	err := h.db.WithContext(r.Context()).
		Where("email = ?", req.Email).
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusAccepted, accepted)
			return
		}
		writeInternal(w, "process login")
		return
	}

	token, err := h.sessions.Issue(r.Context(), client.ID, client.Email)
	if err != nil {
		writeInternal(w, "process login")
		return
	}

	if h.enqueuer != nil {
		task, err := tasks.NewMagicLinkMailTask(tasks.MagicLinkMailPayload{
			ClientID: client.ID,
			Email:    client.Email,
			Token:    token,
		})
		if err == nil {
			_, err = h.enqueuer.EnqueueContext(r.Context(), task, asynq.Queue("critical"))
		}
		if err != nil {
			// Answer 202 anyway: a 500 here would only fire for known
			// addresses and hand an enumeration oracle to the caller.
			slog.Error("enqueue magic link mail", "error", err, "client_id", client.ID)
		}
	}

	writeJSON(w, http.StatusAccepted, accepted)
}

// Verify handles POST /api/v1/portal/verify: consumes the magic-link
// token and establishes the portal session cookie.
func (h *PortalHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.PortalVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	clientID, err := h.sessions.Validate(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, portal.ErrInvalidToken) {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid or expired login link"})
			return
		}
		writeInternal(w, "verify login")
		return
	}

	var client models.Client
	if err := h.db.WithContext(r.Context()).First(&client, "id = ?", clientID).Error; err != nil {
		// Client removed between issuance and verification.
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid or expired login link"})
		return
	}

	session, err := h.jwt.GenerateClientToken(client.ID, client.Email)
	if err != nil {
		writeInternal(w, "verify login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "portal_token",
		Value:    session,
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"token":     session,
		"client_id": client.ID.String(),
	})
}

// Logout handles POST /api/v1/portal/logout
func (h *PortalHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "portal_token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

// ListProjects handles GET /api/v1/portal/projects
func (h *PortalHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	query := h.db.WithContext(r.Context()).Model(&models.Project{})
	if identity.IsClient() {
		query = query.
			Joins("JOIN client_projects ON client_projects.project_id = projects.id").
			Where("client_projects.client_id = ?", identity.ClientID)
	} else {
		query = query.Where("company_id = ?", identity.CompanyID)
	}

	var projects []models.Project
	if err := query.Order("created_at DESC").Find(&projects).Error; err != nil {
		writeInternal(w, "list projects")
		return
	}

	response := make([]ProjectResponse, len(projects))
	for i, p := range projects {
		response[i] = projectToResponse(&p)
	}
	writeJSON(w, http.StatusOK, response)
}

// GetProject handles GET /api/v1/portal/projects/{id}, returning the
// project with its boards and cards read-only.
func (h *PortalHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	projectID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.verifier.Project(r.Context(), projectID,
		identity.CompanyID, identity.ClientID, identity.IsClient())
	if err != nil {
		writeInternal(w, "verify project")
		return
	}
	if !allowed {
		writeNotFound(w, "Project")
		return
	}

	var project models.Project
	if err := h.db.WithContext(r.Context()).First(&project, "id = ?", projectID).Error; err != nil {
		writeNotFound(w, "Project")
		return
	}

	var boards []models.Board
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&boards).Error; err != nil {
		writeInternal(w, "list boards")
		return
	}

	type portalBoard struct {
		BoardResponse
		Cards []CardResponse `json:"cards"`
	}

	boardResponses := make([]portalBoard, len(boards))
	for i, b := range boards {
		var cards []models.Card
		if err := h.db.WithContext(r.Context()).
			Where("board_id = ?", b.ID).
			Order("board_column ASC, position ASC").
			Find(&cards).Error; err != nil {
			writeInternal(w, "list cards")
			return
		}
		cardResponses := make([]CardResponse, len(cards))
		for j, c := range cards {
			cardResponses[j] = cardToResponse(&c)
		}
		boardResponses[i] = portalBoard{
			BoardResponse: boardToResponse(&b),
			Cards:         cardResponses,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project": projectToResponse(&project),
		"boards":  boardResponses,
	})
}

// ListInvoices handles GET /api/v1/portal/invoices
func (h *PortalHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	query := h.db.WithContext(r.Context()).Model(&models.Invoice{})
	if identity.IsClient() {
		// Clients never see drafts.
		query = query.
			Where("client_id = ?", identity.ClientID).
			Where("status <> ?", models.InvoiceStatusDraft)
	} else {
		query = query.Where("company_id = ?", identity.CompanyID)
	}

	var invoices []models.Invoice
	if err := query.Order("created_at DESC").Find(&invoices).Error; err != nil {
		writeInternal(w, "list invoices")
		return
	}

	response := make([]InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		response[i] = invoiceToResponse(&inv)
	}
	writeJSON(w, http.StatusOK, response)
}

// ListQuotes handles GET /api/v1/portal/quotes
func (h *PortalHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	query := h.db.WithContext(r.Context()).Model(&models.Quote{})
	if identity.IsClient() {
		query = query.
			Where("client_id = ?", identity.ClientID).
			Where("status <> ?", models.QuoteStatusDraft)
	} else {
		query = query.Where("company_id = ?", identity.CompanyID)
	}

	var quotes []models.Quote
	if err := query.Order("created_at DESC").Find(&quotes).Error; err != nil {
		writeInternal(w, "list quotes")
		return
	}

	response := make([]QuoteResponse, len(quotes))
	for i, q := range quotes {
		response[i] = quoteToResponse(&q)
	}
	writeJSON(w, http.StatusOK, response)
}

// AcceptQuote handles POST /api/v1/portal/quotes/{id}/accept
func (h *PortalHandler) AcceptQuote(w http.ResponseWriter, r *http.Request) {
	h.decideQuote(w, r, models.QuoteStatusAccepted)
}

// DeclineQuote handles POST /api/v1/portal/quotes/{id}/decline
func (h *PortalHandler) DeclineQuote(w http.ResponseWriter, r *http.Request) {
	h.decideQuote(w, r, models.QuoteStatusDeclined)
}

func (h *PortalHandler) decideQuote(w http.ResponseWriter, r *http.Request, decision models.QuoteStatus) {
	identity := middleware.GetIdentity(r.Context())

	quoteID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var allowed bool
	var err error
	if identity.IsClient() {
		allowed, err = h.verifier.ClientQuote(r.Context(), quoteID, identity.ClientID)
	} else {
		allowed, err = h.verifier.UserQuote(r.Context(), quoteID, identity.CompanyID)
	}
	if err != nil {
		writeInternal(w, "verify quote")
		return
	}
	if !allowed {
		writeNotFound(w, "Quote")
		return
	}

	// Only sent quotes can be decided, and only once.
	result := h.db.WithContext(r.Context()).
		Model(&models.Quote{}).
		Where("id = ? AND status = ?", quoteID, models.QuoteStatusSent).
		Updates(map[string]interface{}{
			"status":     decision,
			"decided_at": time.Now(),
		})
	if result.Error != nil {
		writeInternal(w, "update quote")
		return
	}
	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Quote is not open for decision"})
		return
	}

	var quote models.Quote
	if err := h.db.WithContext(r.Context()).First(&quote, "id = ?", quoteID).Error; err != nil {
		writeInternal(w, "get quote")
		return
	}
	writeJSON(w, http.StatusOK, quoteToResponse(&quote))
}
