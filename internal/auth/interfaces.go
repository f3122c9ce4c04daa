package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/internal/database/models"
)

// Authenticator defines the interface for staff authentication operations.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResponse, error)
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService defines the interface for session token operations.
type TokenService interface {
	GenerateUserToken(userID, companyID uuid.UUID, email, role string) (string, error)
	GenerateClientToken(clientID uuid.UUID, email string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// IdentityResolver maps request credentials to a resolved identity.
// (nil, nil) means unauthenticated; an error means the persistence
// layer failed.
type IdentityResolver interface {
	Resolve(ctx context.Context, creds Credentials) (*Identity, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator    = (*Service)(nil)
	_ TokenService     = (*JWTService)(nil)
	_ IdentityResolver = (*UserResolver)(nil)
	_ IdentityResolver = (*ClientResolver)(nil)
	_ IdentityResolver = (*DualResolver)(nil)
)
