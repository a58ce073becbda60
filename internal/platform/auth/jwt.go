// Package auth validates the bearer tokens callers present on lookup requests.
package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"afmcheck/pkg/apierrors"
)

// Claims are the claims embedded in caller access tokens. CallerID identifies
// the client application for rate limiting and audit attribution.
type Claims struct {
	CallerID string `json:"caller_id"`
	jwt.RegisteredClaims
}

// JWTService validates HS256-signed access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// ValidateToken parses and verifies a token string, returning its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apierrors.New(apierrors.CodeUnauthorized, "token has expired")
		}
		return nil, apierrors.New(apierrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.CallerID == "" {
		return nil, apierrors.New(apierrors.CodeUnauthorized, "invalid token claims")
	}

	return claims, nil
}
