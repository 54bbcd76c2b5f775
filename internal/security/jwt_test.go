package security_test

import (
	"testing"
	"time"

	"github.com/Rrens/finance-chat/internal/security"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", 15*time.Minute)

	accessToken, err := manager.GenerateAccessToken("user-42", "test@example.com")
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}

	claims, err := manager.ValidateAccessToken(accessToken)
	if err != nil {
		t.Fatalf("failed to validate access token: %v", err)
	}

	if claims.UserID() != "user-42" {
		t.Errorf("user ID mismatch: got %v, want %v", claims.UserID(), "user-42")
	}

	if claims.Email != "test@example.com" {
		t.Errorf("email mismatch: got %v", claims.Email)
	}
}

func TestJWTManager_InvalidToken(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", 15*time.Minute)

	if _, err := manager.ValidateAccessToken("invalid-token"); err == nil {
		t.Error("expected error for invalid token, got nil")
	}

	if _, err := manager.ValidateAccessToken(""); err == nil {
		t.Error("expected error for empty token, got nil")
	}

	// Token signed with different secret
	otherManager := security.NewJWTManager("different-secret-key-32-chars!!", 15*time.Minute)
	token, _ := otherManager.GenerateAccessToken("user-42", "")
	if _, err := manager.ValidateAccessToken(token); err == nil {
		t.Error("expected error for token signed with different secret, got nil")
	}

	// Expired token
	expired := security.NewJWTManager("test-secret-key-with-32-chars!!", -time.Minute)
	token, _ = expired.GenerateAccessToken("user-42", "")
	if _, err := manager.ValidateAccessToken(token); err == nil {
		t.Error("expected error for expired token, got nil")
	}

	if _, err := manager.GenerateAccessToken("", ""); err == nil {
		t.Error("expected error for empty user id")
	}
}
