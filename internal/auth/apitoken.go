package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier/internal/database/models"
	"github.com/atelierhq/atelier/pkg/crypto"
)

const apiTokenBytes = 32

var ErrTokenNotFound = errors.New("api token not found")

// ApiTokenService issues and resolves opaque bearer tokens for
// programmatic staff access.
type ApiTokenService struct {
	db *gorm.DB
}

func NewApiTokenService(db *gorm.DB) *ApiTokenService {
	return &ApiTokenService{db: db}
}

// Issue creates a token for the user and returns the raw value. The raw
// value is not recoverable afterwards; only its digest is persisted.
func (s *ApiTokenService) Issue(ctx context.Context, userID, companyID uuid.UUID, name string) (string, *models.ApiToken, error) {
	raw, err := crypto.GenerateToken(apiTokenBytes)
	if err != nil {
		return "", nil, err
	}

	token := models.ApiToken{
		Digest:    crypto.DigestToken(raw),
		UserID:    userID,
		CompanyID: companyID,
		Name:      name,
	}
	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return "", nil, err
	}

	return raw, &token, nil
}

// Resolve maps a presented bearer value to an identity. A missing or
// revoked token, or one whose owner is inactive or soft-deleted, yields
// (nil, nil): not authenticated, not a fault.
func (s *ApiTokenService) Resolve(ctx context.Context, raw string) (*Identity, error) {
	var token models.ApiToken
	err := s.db.WithContext(ctx).
		Where("digest = ?", crypto.DigestToken(raw)).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if token.RevokedAt != nil {
		return nil, nil
	}

	// Owner must still be an active, non-deleted user of a live company.
	// Soft-deleted rows fall out of both lookups automatically.
	var user models.User
	err = s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", token.UserID, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var company models.Company
	err = s.db.WithContext(ctx).First(&company, "id = ?", token.CompanyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now()
	// Best effort; a failed timestamp update must not block auth.
	s.db.WithContext(ctx).Model(&token).Update("last_used_at", now)

	return UserIdentity(user.ID, user.CompanyID, user.Email, user.Role), nil
}

// Revoke marks a token unusable. The transition is one-way and the call
// is idempotent: revoking an already-revoked token succeeds without
// touching the original revocation time.
func (s *ApiTokenService) Revoke(ctx context.Context, tokenID, companyID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Model(&models.ApiToken{}).
		Where("id = ? AND company_id = ?", tokenID, companyID).
		Where("revoked_at IS NULL").
		Update("revoked_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either already revoked (fine) or not ours. Distinguish so the
		// handler can hide out-of-scope tokens as not-found.
		var token models.ApiToken
		err := s.db.WithContext(ctx).
			Where("id = ? AND company_id = ?", tokenID, companyID).
			First(&token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	return nil
}

// List returns the user's tokens, newest first.
func (s *ApiTokenService) List(ctx context.Context, userID, companyID uuid.UUID) ([]models.ApiToken, error) {
	var tokens []models.ApiToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND company_id = ?", userID, companyID).
		Order("created_at DESC").
		Find(&tokens).Error
	return tokens, err
}
