package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/atelierhq/atelier/internal/api/dto"
	"github.com/atelierhq/atelier/internal/api/middleware"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/database/models"
)

type TokenHandler struct {
	tokens *auth.ApiTokenService
}

func NewTokenHandler(tokens *auth.ApiTokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

type CreateTokenRequest struct {
	Name string `json:"name"`
}

func (r CreateTokenRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	return errors
}

// TokenResponse never carries the raw token value except from Create,
// where it appears exactly once.
type TokenResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Token      string  `json:"token,omitempty"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
	RevokedAt  *string `json:"revoked_at,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func tokenToResponse(t *models.ApiToken) TokenResponse {
	resp := TokenResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
	if t.LastUsedAt != nil {
		s := t.LastUsedAt.Format(time.RFC3339)
		resp.LastUsedAt = &s
	}
	if t.RevokedAt != nil {
		s := t.RevokedAt.Format(time.RFC3339)
		resp.RevokedAt = &s
	}
	return resp
}

// List handles GET /api/v1/tokens
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	tokens, err := h.tokens.List(r.Context(), identity.UserID, identity.CompanyID)
	if err != nil {
		writeInternal(w, "list tokens")
		return
	}

	response := make([]TokenResponse, len(tokens))
	for i, t := range tokens {
		response[i] = tokenToResponse(&t)
	}
	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/tokens
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	raw, token, err := h.tokens.Issue(r.Context(), identity.UserID, identity.CompanyID, req.Name)
	if err != nil {
		writeInternal(w, "create token")
		return
	}

	resp := tokenToResponse(token)
	resp.Token = raw
	writeJSON(w, http.StatusCreated, resp)
}

// Revoke handles DELETE /api/v1/tokens/{id}
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	tokenID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	err := h.tokens.Revoke(r.Context(), tokenID, identity.CompanyID)
	if err != nil {
		if err == auth.ErrTokenNotFound {
			writeNotFound(w, "Token")
			return
		}
		writeInternal(w, "revoke token")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Token revoked"})
}
