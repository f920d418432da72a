package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/otpgate/otpgate/internal/config"
	"github.com/otpgate/otpgate/internal/models"
	"github.com/otpgate/otpgate/internal/otp"
	pkgauth "github.com/otpgate/otpgate/pkg/auth"
	pkglogger "github.com/otpgate/otpgate/pkg/logger"
)

// OTP resend purposes
const (
	PurposeRegistration = "registration"
	PurposeLogin        = "login"
)

// AccountRepository defines the persistence operations the auth flow needs
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) (*models.Account, error)
	IncrementOTPAttempts(ctx context.Context, id string) (*models.Account, error)
	RecordLoginOTPFailure(ctx context.Context, id string, maxOTPAttempts, maxLoginFailures int, lockDuration time.Duration) (*models.Account, error)
	RecordChallengeExhausted(ctx context.Context, id string, maxLoginFailures int, lockDuration time.Duration) (*models.Account, error)
}

// SessionIssuer mints session tokens after a successful verification
type SessionIssuer interface {
	GenerateSessionToken(accountID, email string) (string, error)
}

// RegisterInput carries the fields for a new registration
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ChallengeResult reports an issued OTP challenge
type ChallengeResult struct {
	Email     string
	ExpiresIn time.Duration
}

// SessionResult reports a successful verification
type SessionResult struct {
	Token       string
	AccountID   string
	Email       string
	Name        string
	LastLoginAt *time.Time
}

// Profile is the caller-visible view of an account
type Profile struct {
	ID          string
	Email       string
	Name        string
	Verified    bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
}

// AuthService implements email-OTP authentication: registration and
// login each open a challenge against the account's inbox, and only a
// correct code yields a session token.
type AuthService struct {
	repo     AccountRepository
	limiter  RateLimiter
	notifier EmailNotifier
	issuer   SessionIssuer
	otpCfg   config.OTPConfig
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

func NewAuthService(repo AccountRepository, limiter RateLimiter, notifier EmailNotifier, issuer SessionIssuer, otpCfg config.OTPConfig, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:     repo,
		limiter:  limiter,
		notifier: notifier,
		issuer:   issuer,
		otpCfg:   otpCfg,
		logger:   logger,
		audit:    pkglogger.NewAuditLogger(logger),
	}
}

// Register creates an unverified account and opens its first OTP challenge.
// The account is persisted before the email goes out: if delivery fails the
// caller gets ErrNotificationFailed and can recover through ResendOTP.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, ip string) (*ChallengeResult, error) {
	if err := s.limiter.AllowRegistration(ctx, ip); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	// Registration issues a challenge, so it consumes the generation
	// window on top of the registration window.
	if err := s.limiter.AllowOTPGeneration(ctx, email, ip); err != nil {
		return nil, err
	}

	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, &models.ValidationError{Fields: []models.FieldError{
			{Field: "password", Message: err.Error()},
		}}
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Verified {
		return nil, models.ErrAlreadyExists
	}

	credentialHash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential: %w", err)
	}

	code, otpHash, err := s.newChallenge()
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)

	var created *models.Account
	if existing != nil {
		// A pending registration is reused, not rejected: take the
		// latest name and credential and replace the challenge.
		existing.Name = name
		existing.CredentialHash = credentialHash
		created, err = s.saveChallenge(ctx, existing, otpHash, func(fresh *models.Account) error {
			if fresh.Verified {
				return models.ErrAlreadyExists
			}
			fresh.Name = name
			fresh.CredentialHash = credentialHash
			return nil
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("pending registration reissued",
			slog.String("account_id", created.ID),
			slog.String("email", created.Email))
	} else {
		account := &models.Account{
			Email:          email,
			Name:           name,
			CredentialHash: credentialHash,
			Verified:       false,
			Active:         true,
		}
		account.SetChallenge(otpHash, time.Now().Add(s.otpCfg.TTL))

		created, err = s.repo.Create(ctx, account)
		if err != nil {
			return nil, err
		}

		s.logger.Info("account registered",
			slog.String("account_id", created.ID),
			slog.String("email", created.Email))
	}
	s.audit.LogChallengeIssued(created.Email, PurposeRegistration, ip)

	if err := s.notifier.SendRegistrationOTP(ctx, created.Email, created.Name, code, s.otpCfg.TTL); err != nil {
		// Account and challenge are already durable; resend recovers.
		return nil, fmt.Errorf("%w: %v", models.ErrNotificationFailed, err)
	}

	return &ChallengeResult{Email: created.Email, ExpiresIn: s.otpCfg.TTL}, nil
}

// VerifyRegistration checks the registration code and, on success, marks
// the account verified and issues a session token.
func (s *AuthService) VerifyRegistration(ctx context.Context, email, code string) (*SessionResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := s.limiter.AllowOTPVerification(ctx, email); err != nil {
		return nil, err
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if account.Verified {
		return nil, models.ErrAlreadyVerified
	}
	if !account.HasChallenge() {
		return nil, models.ErrExpired
	}
	if account.OTPAttempts >= s.otpCfg.MaxAttempts {
		return nil, models.ErrAttemptsExceeded
	}
	if account.IsOTPExpired() {
		return nil, models.ErrExpired
	}

	if err := otp.Verify(code, *account.OTPHash); err != nil {
		updated, incErr := s.repo.IncrementOTPAttempts(ctx, account.ID)
		if incErr != nil {
			return nil, incErr
		}
		remaining := s.otpCfg.MaxAttempts - updated.OTPAttempts
		if remaining < 0 {
			remaining = 0
		}
		s.logger.Warn("registration otp mismatch",
			slog.String("account_id", account.ID),
			slog.Int("attempts_remaining", remaining))
		// The guess that drains the last attempt is still reported as a
		// wrong code; only the next try fails on exhaustion.
		return nil, &models.InvalidOTPError{AttemptsRemaining: remaining}
	}

	account.Verified = true
	account.ClearChallenge()

	saved, err := s.repo.Save(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrConflictingWrite) {
			// A concurrent request consumed or replaced the challenge first.
			return nil, models.ErrExpired
		}
		return nil, err
	}

	token, err := s.issuer.GenerateSessionToken(saved.ID, saved.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logger.Info("account verified",
		slog.String("account_id", saved.ID),
		slog.String("email", saved.Email))

	return &SessionResult{
		Token:     token,
		AccountID: saved.ID,
		Email:     saved.Email,
		Name:      saved.Name,
	}, nil
}

// RequestLoginOTP opens a login challenge. The email is the only thing
// the caller presents; possession of the inbox is proven when the code
// comes back through VerifyLoginOTP.
func (s *AuthService) RequestLoginOTP(ctx context.Context, email, ip string) (*ChallengeResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := s.limiter.AllowOTPGeneration(ctx, email, ip); err != nil {
		return nil, err
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := loginEligible(account); err != nil {
		return nil, err
	}

	code, otpHash, err := s.newChallenge()
	if err != nil {
		return nil, err
	}

	saved, err := s.saveChallenge(ctx, account, otpHash, loginEligible)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login challenge issued",
		slog.String("account_id", saved.ID),
		slog.String("email", saved.Email))
	s.audit.LogChallengeIssued(saved.Email, PurposeLogin, ip)

	if err := s.notifier.SendLoginOTP(ctx, saved.Email, saved.Name, code, s.otpCfg.TTL); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNotificationFailed, err)
	}

	return &ChallengeResult{Email: saved.Email, ExpiresIn: s.otpCfg.TTL}, nil
}

// VerifyLoginOTP checks the login code. Wrong guesses count against the
// challenge; exhausting a challenge counts as one login failure, and
// enough failed challenges lock the account for the configured duration.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, email, code string) (*SessionResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := s.limiter.AllowOTPVerification(ctx, email); err != nil {
		return nil, err
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if !account.Verified {
		return nil, models.ErrNotVerified
	}
	if !account.Active {
		return nil, models.ErrDeactivated
	}
	if account.IsLocked() {
		return nil, models.ErrLocked
	}
	if !account.HasChallenge() {
		return nil, models.ErrExpired
	}
	if account.OTPAttempts >= s.otpCfg.MaxAttempts {
		updated, recErr := s.repo.RecordChallengeExhausted(ctx, account.ID, s.otpCfg.MaxLoginFailures, s.otpCfg.LockDuration)
		if recErr != nil {
			return nil, recErr
		}
		if updated.IsLocked() {
			s.audit.LogLockout(updated.ID, "", *updated.LockedUntil)
			return nil, models.ErrLocked
		}
		return nil, models.ErrAttemptsExceeded
	}
	if account.IsOTPExpired() {
		return nil, models.ErrExpired
	}

	if err := otp.Verify(code, *account.OTPHash); err != nil {
		updated, recErr := s.repo.RecordLoginOTPFailure(ctx, account.ID, s.otpCfg.MaxAttempts, s.otpCfg.MaxLoginFailures, s.otpCfg.LockDuration)
		if recErr != nil {
			return nil, recErr
		}

		remaining := s.otpCfg.MaxAttempts - updated.OTPAttempts
		if remaining < 0 {
			remaining = 0
		}
		s.logger.Warn("login otp mismatch",
			slog.String("account_id", account.ID),
			slog.Int("attempts_remaining", remaining),
			slog.Int("login_failures", updated.LoginFailureCount))

		if updated.IsLocked() {
			s.audit.LogLockout(updated.ID, "", *updated.LockedUntil)
			return nil, models.ErrLocked
		}
		return nil, &models.InvalidOTPError{AttemptsRemaining: remaining}
	}

	previousLogin := account.LastLoginAt

	now := time.Now()
	account.ClearChallenge()
	account.LoginFailureCount = 0
	account.LockedUntil = nil
	account.LastLoginAt = &now

	saved, err := s.repo.Save(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrConflictingWrite) {
			// Lost the race for this challenge; caller must request a new code.
			return nil, models.ErrExpired
		}
		return nil, err
	}

	token, err := s.issuer.GenerateSessionToken(saved.ID, saved.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logger.Info("login succeeded",
		slog.String("account_id", saved.ID),
		slog.String("email", saved.Email))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		AccountID: saved.ID,
		Success:   true,
	})

	return &SessionResult{
		Token:       token,
		AccountID:   saved.ID,
		Email:       saved.Email,
		Name:        saved.Name,
		LastLoginAt: previousLogin,
	}, nil
}

// ResendOTP replaces the pending challenge with a fresh code. The new
// challenge resets the per-challenge attempt counter but never touches
// the login failure count.
func (s *AuthService) ResendOTP(ctx context.Context, email, purpose, ip string) (*ChallengeResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := s.limiter.AllowOTPGeneration(ctx, email, ip); err != nil {
		return nil, err
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	var eligible func(*models.Account) error
	switch purpose {
	case PurposeRegistration:
		eligible = func(a *models.Account) error {
			if a.Verified {
				return models.ErrAlreadyVerified
			}
			return nil
		}
	case PurposeLogin:
		eligible = loginEligible
	default:
		return nil, &models.ValidationError{Fields: []models.FieldError{
			{Field: "purpose", Message: "must be registration or login"},
		}}
	}

	if err := eligible(account); err != nil {
		return nil, err
	}

	code, otpHash, err := s.newChallenge()
	if err != nil {
		return nil, err
	}

	saved, err := s.saveChallenge(ctx, account, otpHash, eligible)
	if err != nil {
		return nil, err
	}

	s.logger.Info("otp resent",
		slog.String("account_id", saved.ID),
		slog.String("purpose", purpose))
	s.audit.LogChallengeIssued(saved.Email, purpose, ip)

	send := s.notifier.SendLoginOTP
	if purpose == PurposeRegistration {
		send = s.notifier.SendRegistrationOTP
	}
	if err := send(ctx, saved.Email, saved.Name, code, s.otpCfg.TTL); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNotificationFailed, err)
	}

	return &ChallengeResult{Email: saved.Email, ExpiresIn: s.otpCfg.TTL}, nil
}

// GetProfile returns the caller-visible account view
func (s *AuthService) GetProfile(ctx context.Context, accountID string) (*Profile, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		ID:          account.ID,
		Email:       account.Email,
		Name:        account.Name,
		Verified:    account.Verified,
		LastLoginAt: account.LastLoginAt,
		CreatedAt:   account.CreatedAt,
	}, nil
}

// loginEligible reports whether an account may receive a login challenge
func loginEligible(account *models.Account) error {
	if !account.Verified {
		return models.ErrNotVerified
	}
	if !account.Active {
		return models.ErrDeactivated
	}
	if account.IsLocked() {
		return models.ErrLocked
	}
	return nil
}

// saveChallenge stamps the challenge onto the account and persists it.
// When a concurrent writer wins the version race, the account is reloaded
// and revalidated once before retrying; a second conflict is surfaced as
// a store availability error rather than a silent failure.
func (s *AuthService) saveChallenge(ctx context.Context, account *models.Account, otpHash string, revalidate func(*models.Account) error) (*models.Account, error) {
	account.SetChallenge(otpHash, time.Now().Add(s.otpCfg.TTL))

	saved, err := s.repo.Save(ctx, account)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, models.ErrConflictingWrite) {
		return nil, err
	}

	fresh, err := s.repo.FindByID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if err := revalidate(fresh); err != nil {
		return nil, err
	}
	fresh.SetChallenge(otpHash, time.Now().Add(s.otpCfg.TTL))

	saved, err = s.repo.Save(ctx, fresh)
	if err != nil {
		if errors.Is(err, models.ErrConflictingWrite) {
			return nil, fmt.Errorf("%w: repeated write conflict", models.ErrStoreUnavailable)
		}
		return nil, err
	}
	return saved, nil
}

// newChallenge generates a fresh code and its bcrypt hash
func (s *AuthService) newChallenge() (code, hash string, err error) {
	code, err = otp.Generate(s.otpCfg.Length)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate otp: %w", err)
	}
	hash, err = otp.Hash(code)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash otp: %w", err)
	}
	return code, hash, nil
}
