package auth

import (
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		shouldFail bool
	}{
		{
			name:       "valid password",
			password:   "SecureP@ss123",
			shouldFail: false,
		},
		{
			name:       "minimum length accepted",
			password:   "abc12x",
			shouldFail: false,
		},
		{
			name:       "too short",
			password:   "ab1",
			shouldFail: true,
		},
		{
			name:       "too long",
			password:   strings.Repeat("a", 150),
			shouldFail: true,
		},
		{
			name:       "common password rejected",
			password:   "password123",
			shouldFail: true,
		},
		{
			name:       "common password rejected case-insensitive",
			password:   "Password123",
			shouldFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)

			if tt.shouldFail {
				if err == nil {
					t.Errorf("expected error, got nil")
				} else if err.Error() != "invalid password" {
					t.Errorf("user-facing message must stay generic, got: %v", err)
				}
			} else {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
			}
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	password := "SecureP@ss123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == "" {
		t.Error("hash should not be empty")
	}

	if hash == password {
		t.Error("hash should not equal plaintext password")
	}

	err = ComparePassword(hash, password)
	if err != nil {
		t.Errorf("ComparePassword with correct password failed: %v", err)
	}

	err = ComparePassword(hash, "WrongPassword123!")
	if err == nil {
		t.Error("ComparePassword with wrong password should fail")
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("expected error for empty password")
	}
}
