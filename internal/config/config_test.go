package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Set required env vars
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"OTP.TTL", cfg.OTP.TTL, 5 * time.Minute},
		{"OTP.LockDuration", cfg.OTP.LockDuration, 2 * time.Hour},
		{"Auth.TokenTTL", cfg.Auth.TokenTTL, 1 * time.Hour},
		{"RateLimit.RegistrationWindow", cfg.RateLimit.RegistrationWindow, 1 * time.Hour},
		{"RateLimit.GenerationWindow", cfg.RateLimit.GenerationWindow, 1 * time.Minute},
		{"RateLimit.VerificationWindow", cfg.RateLimit.VerificationWindow, 5 * time.Minute},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.OTP.Length != 6 {
		t.Errorf("OTP.Length: got %d, want 6", cfg.OTP.Length)
	}
	if cfg.OTP.MaxAttempts != 3 {
		t.Errorf("OTP.MaxAttempts: got %d, want 3", cfg.OTP.MaxAttempts)
	}
	if cfg.OTP.MaxLoginFailures != 5 {
		t.Errorf("OTP.MaxLoginFailures: got %d, want 5", cfg.OTP.MaxLoginFailures)
	}
	if cfg.RateLimit.RegistrationLimit != 3 {
		t.Errorf("RateLimit.RegistrationLimit: got %d, want 3", cfg.RateLimit.RegistrationLimit)
	}
	if cfg.RateLimit.GenerationLimit != 2 {
		t.Errorf("RateLimit.GenerationLimit: got %d, want 2", cfg.RateLimit.GenerationLimit)
	}
	if cfg.RateLimit.VerificationLimit != 3 {
		t.Errorf("RateLimit.VerificationLimit: got %d, want 3", cfg.RateLimit.VerificationLimit)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("OTP_TTL", "10m")
	os.Setenv("OTP_MAX_ATTEMPTS", "5")
	os.Setenv("LOCK_DURATION", "30m")
	os.Setenv("TOKEN_TTL", "2h")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.OTP.TTL != 10*time.Minute {
		t.Errorf("OTP.TTL: got %v, want 10m", cfg.OTP.TTL)
	}
	if cfg.OTP.MaxAttempts != 5 {
		t.Errorf("OTP.MaxAttempts: got %d, want 5", cfg.OTP.MaxAttempts)
	}
	if cfg.OTP.LockDuration != 30*time.Minute {
		t.Errorf("OTP.LockDuration: got %v, want 30m", cfg.OTP.LockDuration)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("Auth.TokenTTL: got %v, want 2h", cfg.Auth.TokenTTL)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil, want error for missing JWT_SECRET")
	}
}

func TestLoad_WeakJWTSecret(t *testing.T) {
	os.Setenv("JWT_SECRET", "short")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil, want error for weak JWT_SECRET")
	}
}

func TestLoad_ProductionSecretLength(t *testing.T) {
	os.Setenv("JWT_SECRET", "only-twenty-chars!!!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ENV", "production")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil, want error for short production JWT_SECRET")
	}
}

func TestLoad_MissingDBPassword(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil, want error for missing DB_PASSWORD")
	}
}
