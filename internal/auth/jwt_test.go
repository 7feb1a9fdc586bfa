package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bistro-pos/api/internal/enum"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateToken(secret, 42, "anna", enum.RoleWaiter)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.EmployeeID != 42 {
		t.Errorf("employee id: got %d, want 42", claims.EmployeeID)
	}
	if claims.Username != "anna" {
		t.Errorf("username: got %q, want anna", claims.Username)
	}
	if claims.Role != enum.RoleWaiter {
		t.Errorf("role: got %d, want %d", claims.Role, enum.RoleWaiter)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret-a", 1, "marek", enum.RoleCook)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ValidateToken("secret-b", token); err == nil {
		t.Fatal("expected validation to fail with wrong secret")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	if _, err := ValidateToken("secret", "not.a.token"); err == nil {
		t.Fatal("expected validation to fail for garbage input")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	secret := "test-secret"
	claims := Claims{
		EmployeeID: 1,
		Username:   "anna",
		Role:       enum.RoleWaiter,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = ValidateToken(secret, token)
	if err == nil {
		t.Fatal("expected expired token to fail")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("expected expiry error, got: %v", err)
	}
}

func TestValidateTokenRejectsUnknownRole(t *testing.T) {
	secret := "test-secret"
	claims := Claims{
		EmployeeID: 1,
		Username:   "anna",
		Role:       enum.Role(9),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ValidateToken(secret, token); err == nil {
		t.Fatal("expected token with unknown role to fail")
	}
}
