// Package access holds the per-resource authorization predicates.
// Every verifier checks existence, tenant scope, and not-deleted in a
// single query; callers get found or not-found and nothing else, so a
// resource in another tenant is indistinguishable from one that does
// not exist. Verifiers are read-only and safe to call repeatedly.
package access

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier/internal/database/models"
)

type Verifier struct {
	db *gorm.DB
}

func NewVerifier(db *gorm.DB) *Verifier {
	return &Verifier{db: db}
}

func (v *Verifier) exists(ctx context.Context, model interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	err := v.db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UserProject reports whether the project exists inside the company.
func (v *Verifier) UserProject(ctx context.Context, projectID, companyID uuid.UUID) (bool, error) {
	return v.exists(ctx, &models.Project{}, "id = ? AND company_id = ?", projectID, companyID)
}

// ClientProject reports whether a membership row links the client to
// the project. The project itself must also still exist.
func (v *Verifier) ClientProject(ctx context.Context, projectID, clientID uuid.UUID) (bool, error) {
	linked, err := v.exists(ctx, &models.ClientProject{},
		"project_id = ? AND client_id = ?", projectID, clientID)
	if err != nil || !linked {
		return false, err
	}
	return v.exists(ctx, &models.Project{}, "id = ?", projectID)
}

// Project dispatches on the identity kind.
func (v *Verifier) Project(ctx context.Context, projectID uuid.UUID, companyID, clientID uuid.UUID, isClient bool) (bool, error) {
	if isClient {
		return v.ClientProject(ctx, projectID, clientID)
	}
	return v.UserProject(ctx, projectID, companyID)
}

func (v *Verifier) UserClient(ctx context.Context, clientID, companyID uuid.UUID) (bool, error) {
	return v.exists(ctx, &models.Client{}, "id = ? AND company_id = ?", clientID, companyID)
}

func (v *Verifier) UserInvoice(ctx context.Context, invoiceID, companyID uuid.UUID) (bool, error) {
	return v.exists(ctx, &models.Invoice{}, "id = ? AND company_id = ?", invoiceID, companyID)
}

func (v *Verifier) ClientInvoice(ctx context.Context, invoiceID, clientID uuid.UUID) (bool, error) {
	return v.exists(ctx, &models.Invoice{}, "id = ? AND client_id = ?", invoiceID, clientID)
}

func (v *Verifier) UserQuote(ctx context.Context, quoteID, companyID uuid.UUID) (bool, error) {
	return v.exists(ctx, &models.Quote{}, "id = ? AND company_id = ?", quoteID, companyID)
}

func (v *Verifier) ClientQuote(ctx context.Context, quoteID, clientID uuid.UUID) (bool, error) {
	return v.exists(ctx, &models.Quote{}, "id = ? AND client_id = ?", quoteID, clientID)
}

// UserBoard walks board → project to confirm company ownership.
func (v *Verifier) UserBoard(ctx context.Context, boardID, companyID uuid.UUID) (bool, error) {
	var count int64
	err := v.db.WithContext(ctx).
		Model(&models.Board{}).
		Joins("JOIN projects ON projects.id = boards.project_id").
		Where("boards.id = ? AND projects.company_id = ? AND projects.deleted_at IS NULL", boardID, companyID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UserCard walks card → board → project.
func (v *Verifier) UserCard(ctx context.Context, cardID, companyID uuid.UUID) (bool, error) {
	var count int64
	err := v.db.WithContext(ctx).
		Model(&models.Card{}).
		Joins("JOIN boards ON boards.id = cards.board_id").
		Joins("JOIN projects ON projects.id = boards.project_id").
		Where("cards.id = ? AND projects.company_id = ?", cardID, companyID).
		Where("boards.deleted_at IS NULL AND projects.deleted_at IS NULL").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ProjectFile confirms the file belongs to a project the company owns.
func (v *Verifier) ProjectFile(ctx context.Context, fileID, projectID, companyID uuid.UUID) (bool, error) {
	var count int64
	err := v.db.WithContext(ctx).
		Model(&models.ProjectFile{}).
		Joins("JOIN projects ON projects.id = project_files.project_id").
		Where("project_files.id = ? AND project_files.project_id = ? AND projects.company_id = ?", fileID, projectID, companyID).
		Where("projects.deleted_at IS NULL").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
