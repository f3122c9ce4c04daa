package portal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier/internal/database/models"
	"github.com/atelierhq/atelier/pkg/crypto"
)

const loginTokenBytes = 32

// ErrInvalidToken covers every way a login token can fail: unknown,
// expired, or already consumed. Callers map it to a 401, never a 500.
var ErrInvalidToken = errors.New("invalid login token")

// SessionStore is the durable record of issued magic-link login tokens.
// Tokens are single-use: Validate consumes on success, so a replayed
// link fails even inside the TTL.
type SessionStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewSessionStore(db *gorm.DB, ttl time.Duration) *SessionStore {
	return &SessionStore{db: db, ttl: ttl}
}

// Issue generates a random token for the client and persists its digest
// with a fixed expiry. The raw value is returned once and never stored.
func (s *SessionStore) Issue(ctx context.Context, clientID uuid.UUID, email string) (string, error) {
	raw, err := crypto.GenerateToken(loginTokenBytes)
	if err != nil {
		return "", err
	}

	row := models.LoginToken{
		Digest:    crypto.DigestToken(raw),
		ClientID:  clientID,
		Email:     email,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}

	return raw, nil
}

// Validate looks up a presented token and consumes it. The consume is a
// guarded UPDATE so two concurrent verifications of the same link
// cannot both succeed.
func (s *SessionStore) Validate(ctx context.Context, raw string) (uuid.UUID, error) {
	var row models.LoginToken
	err := s.db.WithContext(ctx).
		Where("digest = ?", crypto.DigestToken(raw)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrInvalidToken
		}
		return uuid.Nil, err
	}

	now := time.Now()
	if row.ConsumedAt != nil || now.After(row.ExpiresAt) {
		return uuid.Nil, ErrInvalidToken
	}

	result := s.db.WithContext(ctx).
		Model(&models.LoginToken{}).
		Where("id = ? AND consumed_at IS NULL", row.ID).
		Update("consumed_at", now)
	if result.Error != nil {
		return uuid.Nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to another verification.
		return uuid.Nil, ErrInvalidToken
	}

	return row.ClientID, nil
}

// Revoke marks a token consumed without establishing a session.
// Idempotent; revoking an unknown or spent token is a no-op.
func (s *SessionStore) Revoke(ctx context.Context, raw string) error {
	return s.db.WithContext(ctx).
		Model(&models.LoginToken{}).
		Where("digest = ? AND consumed_at IS NULL", crypto.DigestToken(raw)).
		Update("consumed_at", time.Now()).Error
}
