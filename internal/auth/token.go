package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/otpgate/otpgate/internal/models"
)

// TokenManager handles session JWT generation and validation
type TokenManager struct {
	secret     string
	sessionTTL time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, sessionTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     secret,
		sessionTTL: sessionTTL,
	}
}

// GenerateSessionToken creates a signed session token with a unique JTI.
// Tokens are only issued after a successful OTP verification.
func (tm *TokenManager) GenerateSessionToken(accountID, email string) (string, error) {
	jti := uuid.New().String()

	now := time.Now()
	claims := &models.SessionClaims{
		AccountID: accountID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a session token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.AccountID == "" {
		return nil, fmt.Errorf("invalid token: missing subject")
	}

	return claims, nil
}
