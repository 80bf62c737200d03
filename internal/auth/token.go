package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const verificationTokenTTL = 24 * time.Hour

// TokenSigner issues and validates the signed tokens used in email
// verification links.
type TokenSigner struct {
	secret []byte
}

func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

type verificationClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

// SignVerification returns a token asserting ownership of the user's email.
func (ts *TokenSigner) SignVerification(userID string) (string, error) {
	now := time.Now().UTC()
	claims := verificationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(verificationTokenTTL)),
		},
		Purpose: "email_verification",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return signed, nil
}

// VerifyVerification validates the token and returns the user ID it was
// issued for.
func (ts *TokenSigner) VerifyVerification(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &verificationClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ts.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse verification token: %w", err)
	}
	claims, ok := token.Claims.(*verificationClaims)
	if !ok || claims.Purpose != "email_verification" || claims.Subject == "" {
		return "", fmt.Errorf("invalid verification token claims")
	}
	return claims.Subject, nil
}
