package models

import (
	"time"
)

// Account is the central entity: one row per email address.
// The otp_* fields describe the current outstanding OTP challenge, if any;
// they are overwritten on every issuance and cleared on consumption.
type Account struct {
	ID                string
	Email             string // unique, stored lowercase
	Name              string
	CredentialHash    string
	Verified          bool // false until the registration OTP is consumed
	Active            bool // administrative deactivation flag
	OTPHash           *string
	OTPExpiresAt      *time.Time
	OTPAttempts       int // failed tries against the current challenge
	LoginFailureCount int // exhausted challenges since last successful login
	LockedUntil       *time.Time
	LastLoginAt       *time.Time
	Version           int64 // optimistic concurrency guard
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasChallenge reports whether an OTP challenge is currently outstanding.
func (a *Account) HasChallenge() bool {
	return a.OTPHash != nil && a.OTPExpiresAt != nil
}

// IsOTPExpired reports whether the current challenge has expired.
// An account without a challenge counts as expired.
func (a *Account) IsOTPExpired() bool {
	if a.OTPExpiresAt == nil {
		return true
	}
	return time.Now().After(*a.OTPExpiresAt)
}

// IsLocked reports whether the account is under a temporary lockout.
// A lapsed lock needs no write to clear; it simply stops matching.
func (a *Account) IsLocked() bool {
	return a.LockedUntil != nil && time.Now().Before(*a.LockedUntil)
}

// SetChallenge installs a new OTP challenge, invalidating any previous one.
func (a *Account) SetChallenge(otpHash string, expiresAt time.Time) {
	a.OTPHash = &otpHash
	a.OTPExpiresAt = &expiresAt
	a.OTPAttempts = 0
}

// ClearChallenge removes the outstanding challenge after consumption.
func (a *Account) ClearChallenge() {
	a.OTPHash = nil
	a.OTPExpiresAt = nil
	a.OTPAttempts = 0
}
