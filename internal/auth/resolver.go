package auth

import (
	"context"
	"net/http"
	"strings"
)

// Credentials are the raw artifacts pulled off a request before any
// validation. Extraction is separated from resolution so resolvers can
// be exercised without an *http.Request.
type Credentials struct {
	SessionToken string // JWT from the session cookie
	BearerToken  string // Authorization: Bearer value (JWT or opaque)
	PortalToken  string // portal session cookie
}

const (
	sessionCookieName = "token"
	portalCookieName  = "portal_token"
	authTokenHeader   = "X-Auth-Token"
)

// CredentialsFromRequest collects every credential the request carries.
// It never inspects validity; that is the resolvers' job.
func CredentialsFromRequest(r *http.Request) Credentials {
	var creds Credentials

	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		creds.SessionToken = cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		creds.BearerToken = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if creds.BearerToken == "" {
		creds.BearerToken = r.Header.Get(authTokenHeader)
	}

	if cookie, err := r.Cookie(portalCookieName); err == nil && cookie.Value != "" {
		creds.PortalToken = cookie.Value
	}

	return creds
}

// UserResolver turns staff credentials into a user identity. Credential
// order is fixed: session cookie first, then the bearer value as a JWT,
// then the bearer value as an opaque API token. A request that fails
// every path is simply unauthenticated: (nil, nil).
type UserResolver struct {
	jwt    *JWTService
	tokens *ApiTokenService
}

func NewUserResolver(jwt *JWTService, tokens *ApiTokenService) *UserResolver {
	return &UserResolver{jwt: jwt, tokens: tokens}
}

func (r *UserResolver) Resolve(ctx context.Context, creds Credentials) (*Identity, error) {
	if creds.SessionToken != "" {
		if identity := r.fromJWT(creds.SessionToken); identity != nil {
			return identity, nil
		}
	}

	if creds.BearerToken == "" {
		return nil, nil
	}

	if identity := r.fromJWT(creds.BearerToken); identity != nil {
		return identity, nil
	}

	return r.tokens.Resolve(ctx, creds.BearerToken)
}

func (r *UserResolver) fromJWT(token string) *Identity {
	claims, err := r.jwt.ValidateToken(token)
	if err != nil || claims.Kind != SubjectUser {
		return nil
	}
	return UserIdentity(claims.UserID, claims.CompanyID, claims.Email, claims.Role)
}

// ClientResolver turns a portal session into a client identity. Absence
// or invalidity is not an error; the caller is just not a client.
type ClientResolver struct {
	jwt *JWTService
}

func NewClientResolver(jwt *JWTService) *ClientResolver {
	return &ClientResolver{jwt: jwt}
}

func (r *ClientResolver) Resolve(ctx context.Context, creds Credentials) (*Identity, error) {
	if creds.PortalToken == "" {
		return nil, nil
	}
	claims, err := r.jwt.ValidateToken(creds.PortalToken)
	if err != nil || claims.Kind != SubjectClient {
		return nil, nil
	}
	return ClientIdentity(claims.ClientID, claims.Email), nil
}

// DualResolver disambiguates endpoints reachable by both staff and
// clients. Precedence is fixed user-before-client: a caller holding
// both a staff session and a portal session is always treated as staff,
// and the client path is not attempted at all.
type DualResolver struct {
	users   *UserResolver
	clients *ClientResolver
}

func NewDualResolver(users *UserResolver, clients *ClientResolver) *DualResolver {
	return &DualResolver{users: users, clients: clients}
}

func (r *DualResolver) Resolve(ctx context.Context, creds Credentials) (*Identity, error) {
	identity, err := r.users.Resolve(ctx, creds)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		return identity, nil
	}
	return r.clients.Resolve(ctx, creds)
}
