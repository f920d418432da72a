package handlers

import (
	"context"

	"github.com/otpgate/otpgate/internal/models"
	"github.com/otpgate/otpgate/internal/services"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc           func(ctx context.Context, input services.RegisterInput, ip string) (*services.ChallengeResult, error)
	VerifyRegistrationFunc func(ctx context.Context, email, code string) (*services.SessionResult, error)
	RequestLoginOTPFunc    func(ctx context.Context, email, ip string) (*services.ChallengeResult, error)
	VerifyLoginOTPFunc     func(ctx context.Context, email, code string) (*services.SessionResult, error)
	ResendOTPFunc          func(ctx context.Context, email, purpose, ip string) (*services.ChallengeResult, error)
	GetProfileFunc         func(ctx context.Context, accountID string) (*services.Profile, error)
}

func (m *MockAuthService) Register(ctx context.Context, input services.RegisterInput, ip string) (*services.ChallengeResult, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, input, ip)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) VerifyRegistration(ctx context.Context, email, code string) (*services.SessionResult, error) {
	if m.VerifyRegistrationFunc != nil {
		return m.VerifyRegistrationFunc(ctx, email, code)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) RequestLoginOTP(ctx context.Context, email, ip string) (*services.ChallengeResult, error) {
	if m.RequestLoginOTPFunc != nil {
		return m.RequestLoginOTPFunc(ctx, email, ip)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) VerifyLoginOTP(ctx context.Context, email, code string) (*services.SessionResult, error) {
	if m.VerifyLoginOTPFunc != nil {
		return m.VerifyLoginOTPFunc(ctx, email, code)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) ResendOTP(ctx context.Context, email, purpose, ip string) (*services.ChallengeResult, error) {
	if m.ResendOTPFunc != nil {
		return m.ResendOTPFunc(ctx, email, purpose, ip)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) GetProfile(ctx context.Context, accountID string) (*services.Profile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}
