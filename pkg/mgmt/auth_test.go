package mgmt

import (
	"testing"
	"time"
)

func TestIssueAndValidateBearerRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueBearer(secret, "operator", time.Hour)
	if err != nil {
		t.Fatalf("IssueBearer: %v", err)
	}
	claims, err := ValidateBearer(secret, token)
	if err != nil {
		t.Fatalf("ValidateBearer: %v", err)
	}
	if claims.Subject != "operator" {
		t.Fatalf("Subject = %q, want operator", claims.Subject)
	}
}

func TestValidateBearerRejectsWrongSecret(t *testing.T) {
	token, err := IssueBearer([]byte("secret-a"), "operator", time.Hour)
	if err != nil {
		t.Fatalf("IssueBearer: %v", err)
	}
	if _, err := ValidateBearer([]byte("secret-b"), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateBearerRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueBearer(secret, "operator", -time.Hour)
	if err != nil {
		t.Fatalf("IssueBearer: %v", err)
	}
	if _, err := ValidateBearer(secret, token); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
