package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Subject kinds carried in session tokens. Staff and portal sessions
// share the signing key but are never interchangeable: validation
// checks the kind.
const (
	SubjectUser   = "user"
	SubjectClient = "client"
)

type Claims struct {
	Kind      string    `json:"kind"`
	UserID    uuid.UUID `json:"user_id,omitempty"`
	CompanyID uuid.UUID `json:"company_id,omitempty"`
	ClientID  uuid.UUID `json:"client_id,omitempty"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secret       []byte
	expiry       time.Duration
	portalExpiry time.Duration
}

func NewJWTService(secret string, expiry, portalExpiry time.Duration) *JWTService {
	return &JWTService{
		secret:       []byte(secret),
		expiry:       expiry,
		portalExpiry: portalExpiry,
	}
}

func (s *JWTService) GenerateUserToken(userID, companyID uuid.UUID, email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind:      SubjectUser,
		UserID:    userID,
		CompanyID: companyID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "atelier",
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// GenerateClientToken issues the portal session established after a
// magic link is verified.
func (s *JWTService) GenerateClientToken(clientID uuid.UUID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind:     SubjectClient,
		ClientID: clientID,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.portalExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "atelier",
			Subject:   clientID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
