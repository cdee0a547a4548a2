package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/chatvibe/console/internal/errors"
)

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		password  string
		wantField map[string]string
	}{
		{"valid", "demo@chatvibe.dev", "secret", nil},
		{"empty email", "", "secret", map[string]string{"email": "Email is required"}},
		{"no domain dot", "demo@chatvibe", "secret", map[string]string{"email": "Invalid email"}},
		{"whitespace inside", "de mo@chatvibe.dev", "secret", map[string]string{"email": "Invalid email"}},
		{"empty password", "demo@chatvibe.dev", "", map[string]string{"password": "Password is required"}},
		{"both empty", "", "", map[string]string{"email": "Email is required", "password": "Password is required"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentials(tt.email, tt.password)
			if tt.wantField == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !apperrors.Is(err, apperrors.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var fe apperrors.FieldErrors
			if !apperrors.As(err, &fe) {
				t.Fatalf("expected FieldErrors, got %T", err)
			}
			for field, msg := range tt.wantField {
				if fe.Field(field) != msg {
					t.Errorf("field %s = %q, want %q", field, fe.Field(field), msg)
				}
			}
		})
	}
}

func TestUserIDFromToken(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 42}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got := UserIDFromToken(token); got != "42" {
		t.Errorf("UserIDFromToken = %q, want 42", got)
	}
	if got := UserIDFromToken("garbage"); got != "" {
		t.Errorf("UserIDFromToken(garbage) = %q", got)
	}
}

func TestInMemoryTokenStore(t *testing.T) {
	s := NewInMemoryTokenStore()
	_ = s.Store(keyAccess, "a")
	if !s.Exists(keyAccess) {
		t.Fatal("expected access to exist")
	}
	_ = s.Clear()
	if _, err := s.Retrieve(keyAccess); err == nil {
		t.Error("expected error after Clear")
	}
}
