// Package otp generates one-time passcodes and hashes both passcodes and
// long-term credentials. The same bcrypt cost is used for both on purpose:
// guessing a stored OTP hash is as expensive as guessing a password hash,
// and rate limiting bounds online guessing of the 10^6 space.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultLength is the number of digits in a generated passcode.
	DefaultLength = 6

	// BcryptCost applies to both credential and OTP hashing.
	BcryptCost = 12
)

// Generate produces a fixed-length numeric passcode, uniform over the full
// digit range including leading zeros, from a cryptographically secure source.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n), nil
}

// Hash produces a salted one-way hash of a secret (credential or OTP).
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plaintext secret against its stored hash using bcrypt's
// own constant-time comparison. Returns nil on match.
func Verify(secret, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}
