package services

import (
	"context"
	"time"

	"github.com/otpgate/otpgate/internal/models"
	"github.com/otpgate/otpgate/internal/otp"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	FindByIDFunc                 func(ctx context.Context, id string) (*models.Account, error)
	FindByEmailFunc              func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc                   func(ctx context.Context, account *models.Account) (*models.Account, error)
	SaveFunc                     func(ctx context.Context, account *models.Account) (*models.Account, error)
	IncrementOTPAttemptsFunc     func(ctx context.Context, id string) (*models.Account, error)
	RecordLoginOTPFailureFunc    func(ctx context.Context, id string, maxOTPAttempts, maxLoginFailures int, lockDuration time.Duration) (*models.Account, error)
	RecordChallengeExhaustedFunc func(ctx context.Context, id string, maxLoginFailures int, lockDuration time.Duration) (*models.Account, error)
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	account.ID = "account_test"
	return account, nil
}

func (m *MockAccountRepository) Save(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, account)
	}
	return account, nil
}

func (m *MockAccountRepository) IncrementOTPAttempts(ctx context.Context, id string) (*models.Account, error) {
	if m.IncrementOTPAttemptsFunc != nil {
		return m.IncrementOTPAttemptsFunc(ctx, id)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) RecordLoginOTPFailure(ctx context.Context, id string, maxOTPAttempts, maxLoginFailures int, lockDuration time.Duration) (*models.Account, error) {
	if m.RecordLoginOTPFailureFunc != nil {
		return m.RecordLoginOTPFailureFunc(ctx, id, maxOTPAttempts, maxLoginFailures, lockDuration)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) RecordChallengeExhausted(ctx context.Context, id string, maxLoginFailures int, lockDuration time.Duration) (*models.Account, error) {
	if m.RecordChallengeExhaustedFunc != nil {
		return m.RecordChallengeExhaustedFunc(ctx, id, maxLoginFailures, lockDuration)
	}
	return nil, models.ErrInternalServer
}

// MockRateLimiter implements RateLimiter for testing
type MockRateLimiter struct {
	AllowRegistrationFunc    func(ctx context.Context, ip string) error
	AllowOTPGenerationFunc   func(ctx context.Context, email, ip string) error
	AllowOTPVerificationFunc func(ctx context.Context, email string) error
}

func (m *MockRateLimiter) AllowRegistration(ctx context.Context, ip string) error {
	if m.AllowRegistrationFunc != nil {
		return m.AllowRegistrationFunc(ctx, ip)
	}
	return nil
}

func (m *MockRateLimiter) AllowOTPGeneration(ctx context.Context, email, ip string) error {
	if m.AllowOTPGenerationFunc != nil {
		return m.AllowOTPGenerationFunc(ctx, email, ip)
	}
	return nil
}

func (m *MockRateLimiter) AllowOTPVerification(ctx context.Context, email string) error {
	if m.AllowOTPVerificationFunc != nil {
		return m.AllowOTPVerificationFunc(ctx, email)
	}
	return nil
}

// MockEmailNotifier implements EmailNotifier for testing
type MockEmailNotifier struct {
	SendRegistrationOTPFunc func(ctx context.Context, email, name, code string, expiresIn time.Duration) error
	SendLoginOTPFunc        func(ctx context.Context, email, name, code string, expiresIn time.Duration) error
}

func (m *MockEmailNotifier) SendRegistrationOTP(ctx context.Context, email, name, code string, expiresIn time.Duration) error {
	if m.SendRegistrationOTPFunc != nil {
		return m.SendRegistrationOTPFunc(ctx, email, name, code, expiresIn)
	}
	return nil
}

func (m *MockEmailNotifier) SendLoginOTP(ctx context.Context, email, name, code string, expiresIn time.Duration) error {
	if m.SendLoginOTPFunc != nil {
		return m.SendLoginOTPFunc(ctx, email, name, code, expiresIn)
	}
	return nil
}

// MockSessionIssuer implements SessionIssuer for testing
type MockSessionIssuer struct {
	GenerateSessionTokenFunc func(accountID, email string) (string, error)
}

func (m *MockSessionIssuer) GenerateSessionToken(accountID, email string) (string, error) {
	if m.GenerateSessionTokenFunc != nil {
		return m.GenerateSessionTokenFunc(accountID, email)
	}
	return "session_token_" + accountID, nil
}

// NewTestAccount creates a verified active account
func NewTestAccount(id, email, name string) *models.Account {
	now := time.Now()
	return &models.Account{
		ID:        id,
		Email:     email,
		Name:      name,
		Verified:  true,
		Active:    true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestAccountWithChallenge creates an account holding a pending OTP
// challenge for the given plaintext code
func NewTestAccountWithChallenge(id, email, name, code string, expiresAt time.Time) *models.Account {
	account := NewTestAccount(id, email, name)
	hash, err := otp.Hash(code)
	if err != nil {
		panic(err)
	}
	account.SetChallenge(hash, expiresAt)
	return account
}

// NewTestAccountUnverified creates an account that has not completed
// registration verification
func NewTestAccountUnverified(id, email, name string) *models.Account {
	account := NewTestAccount(id, email, name)
	account.Verified = false
	return account
}

// NewTestAccountLocked creates a locked account
func NewTestAccountLocked(id, email, name string) *models.Account {
	account := NewTestAccount(id, email, name)
	lockedUntil := time.Now().Add(30 * time.Minute)
	account.LockedUntil = &lockedUntil
	return account
}
