package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

func setSecret(t *testing.T) {
	t.Helper()
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidateToken(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("user-1", "Moderator", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Role != "moderator" {
		t.Fatalf("role not normalized: %s", claims.Role)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti claim")
	}
}

func TestGenerateTokenRequiresUser(t *testing.T) {
	setSecret(t)

	if _, err := GenerateToken("  ", "user", time.Minute); err == nil {
		t.Fatal("expected error for blank user")
	}
	if _, err := GenerateToken("user-1", "user", 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("user-1", "admin", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %s", token)
	}
	tampered := parts[0] + "." + parts[1] + ".AAAA"
	if _, err := ParseAndValidate(tampered); err == nil {
		t.Fatal("expected tampered token to fail")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("user-1", "user", time.Millisecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("user-1", "user", time.Minute); err == nil {
		t.Fatal("expected error when secret is unset")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := ContextWithUser(context.Background(), "user-9", "Admin")

	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-9" {
		t.Fatalf("unexpected user id: %q ok=%v", id, ok)
	}
	if got := RoleFromContext(ctx); got != "admin" {
		t.Fatalf("unexpected role: %q", got)
	}
	if !HasRole(ctx, "ADMIN") {
		t.Fatal("HasRole should be case-insensitive")
	}
	if HasRole(ctx, "moderator") {
		t.Fatal("HasRole matched the wrong role")
	}
}
