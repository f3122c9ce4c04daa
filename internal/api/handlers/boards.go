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
	"github.com/atelierhq/atelier/internal/database/models"
)

type BoardHandler struct {
	db       *gorm.DB
	verifier *access.Verifier
}

func NewBoardHandler(db *gorm.DB, verifier *access.Verifier) *BoardHandler {
	return &BoardHandler{db: db, verifier: verifier}
}

type CreateBoardRequest struct {
	Name string `json:"name"`
}

func (r CreateBoardRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	return errors
}

type CreateCardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Column      string `json:"column,omitempty"`
}

func (r CreateCardRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Title == "" {
		errors["title"] = "Title is required"
	}
	return errors
}

type MoveCardRequest struct {
	Column   string `json:"column"`
	Position int    `json:"position"`
}

func (r MoveCardRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Column == "" {
		errors["column"] = "Column is required"
	}
	if r.Position < 0 {
		errors["position"] = "Position must not be negative"
	}
	return errors
}

type BoardResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Columns   string `json:"columns"`
	CreatedAt string `json:"created_at"`
}

func boardToResponse(b *models.Board) BoardResponse {
	return BoardResponse{
		ID:        b.ID.String(),
		ProjectID: b.ProjectID.String(),
		Name:      b.Name,
		Columns:   b.Columns,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

type CardResponse struct {
	ID          string `json:"id"`
	BoardID     string `json:"board_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Column      string `json:"column"`
	Position    int    `json:"position"`
	CreatedAt   string `json:"created_at"`
}

func cardToResponse(c *models.Card) CardResponse {
	return CardResponse{
		ID:          c.ID.String(),
		BoardID:     c.BoardID.String(),
		Title:       c.Title,
		Description: c.Description,
		Column:      c.Column,
		Position:    c.Position,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

// ListByProject handles GET /api/v1/projects/{id}/boards
func (h *BoardHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
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

	var boards []models.Board
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&boards).Error; err != nil {
		writeInternal(w, "list boards")
		return
	}

	response := make([]BoardResponse, len(boards))
	for i, b := range boards {
		response[i] = boardToResponse(&b)
	}
	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/projects/{id}/boards
func (h *BoardHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req CreateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	board := models.Board{
		ProjectID: projectID,
		Name:      req.Name,
	}
	if err := h.db.WithContext(r.Context()).Create(&board).Error; err != nil {
		writeInternal(w, "create board")
		return
	}

	writeJSON(w, http.StatusCreated, boardToResponse(&board))
}

// ListCards handles GET /api/v1/boards/{id}/cards
func (h *BoardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	boardID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if ok, err := h.verifier.UserBoard(r.Context(), boardID, identity.CompanyID); err != nil {
		writeInternal(w, "verify board")
		return
	} else if !ok {
		writeNotFound(w, "Board")
		return
	}

	var cards []models.Card
	if err := h.db.WithContext(r.Context()).
		Where("board_id = ?", boardID).
		Order("board_column ASC, position ASC").
		Find(&cards).Error; err != nil {
		writeInternal(w, "list cards")
		return
	}

	response := make([]CardResponse, len(cards))
	for i, c := range cards {
		response[i] = cardToResponse(&c)
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateCard handles POST /api/v1/boards/{id}/cards
func (h *BoardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	boardID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if ok, err := h.verifier.UserBoard(r.Context(), boardID, identity.CompanyID); err != nil {
		writeInternal(w, "verify board")
		return
	} else if !ok {
		writeNotFound(w, "Board")
		return
	}

	var req CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	column := req.Column
	if column == "" {
		column = "Backlog"
	}

	// Append to the end of the column
	var maxPos int
	row := h.db.WithContext(r.Context()).
		Model(&models.Card{}).
		Where("board_id = ? AND board_column = ?", boardID, column).
		Select("COALESCE(MAX(position), -1)").
		Row()
	if err := row.Scan(&maxPos); err != nil {
		maxPos = -1
	}

	card := models.Card{
		BoardID:     boardID,
		Title:       req.Title,
		Description: req.Description,
		Column:      column,
		Position:    maxPos + 1,
	}
	if err := h.db.WithContext(r.Context()).Create(&card).Error; err != nil {
		writeInternal(w, "create card")
		return
	}

	writeJSON(w, http.StatusCreated, cardToResponse(&card))
}

// MoveCard handles PUT /api/v1/cards/{id}/move
func (h *BoardHandler) MoveCard(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	cardID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if ok, err := h.verifier.UserCard(r.Context(), cardID, identity.CompanyID); err != nil {
		writeInternal(w, "verify card")
		return
	} else if !ok {
		writeNotFound(w, "Card")
		return
	}

	var req MoveCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	result := h.db.WithContext(r.Context()).
		Model(&models.Card{}).
		Where("id = ?", cardID).
		Updates(map[string]interface{}{
			"board_column": req.Column,
			"position":     req.Position,
		})
	if result.Error != nil {
		writeInternal(w, "move card")
		return
	}

	var card models.Card
	if err := h.db.WithContext(r.Context()).First(&card, "id = ?", cardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeNotFound(w, "Card")
			return
		}
		writeInternal(w, "get card")
		return
	}
	writeJSON(w, http.StatusOK, cardToResponse(&card))
}

// DeleteCard handles DELETE /api/v1/cards/{id}
func (h *BoardHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	cardID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if ok, err := h.verifier.UserCard(r.Context(), cardID, identity.CompanyID); err != nil {
		writeInternal(w, "verify card")
		return
	} else if !ok {
		writeNotFound(w, "Card")
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(&models.Card{}, "id = ?", cardID).Error; err != nil {
		writeInternal(w, "delete card")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Card deleted"})
}
