package auth

import "github.com/google/uuid"

// IdentityKind tags the two caller populations. Every authorization
// decision downstream branches on it.
type IdentityKind string

const (
	IdentityUser   IdentityKind = "user"
	IdentityClient IdentityKind = "client"
)

// Identity is the resolved caller for one request. It is built once by
// a resolver, threaded through the request context, and discarded.
// A user identity always carries UserID, CompanyID, and Role; a client
// identity carries ClientID only.
type Identity struct {
	Kind      IdentityKind
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      string
	ClientID  uuid.UUID
	Email     string
}

func UserIdentity(userID, companyID uuid.UUID, email, role string) *Identity {
	return &Identity{
		Kind:      IdentityUser,
		UserID:    userID,
		CompanyID: companyID,
		Email:     email,
		Role:      role,
	}
}

func ClientIdentity(clientID uuid.UUID, email string) *Identity {
	return &Identity{
		Kind:     IdentityClient,
		ClientID: clientID,
		Email:    email,
	}
}

func (i *Identity) IsUser() bool {
	return i != nil && i.Kind == IdentityUser
}

func (i *Identity) IsClient() bool {
	return i != nil && i.Kind == IdentityClient
}
