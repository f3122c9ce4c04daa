package models

import (
	"time"

	"github.com/google/uuid"
)

// ApiToken is a long-lived bearer credential for programmatic staff
// access. Only the SHA-256 digest of the presented value is stored.
// Revocation is a one-way transition: RevokedAt is set once and the
// token is unusable from then on.
type ApiToken struct {
	Base
	Digest     string     `gorm:"uniqueIndex;not null" json:"-"`
	UserID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	CompanyID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"company_id"`
	Name       string     `json:"name"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (ApiToken) TableName() string {
	return "api_tokens"
}

// LoginToken backs client-portal magic-link login. A token is valid
// only while now < ExpiresAt and ConsumedAt is null; verification
// consumes it, so a magic link works exactly once.
type LoginToken struct {
	Base
	Digest     string     `gorm:"uniqueIndex;not null" json:"-"`
	ClientID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"client_id"`
	Email      string     `gorm:"not null" json:"email"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

func (LoginToken) TableName() string {
	return "login_tokens"
}
