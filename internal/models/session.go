package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the JWT claims carried by a session token.
type SessionClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}
