package identity

import (
	"testing"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
)

func TestTokenService_IssueAndVerify(t *testing.T) {
	ts := NewTokenService("test-secret", time.Hour, "academy")
	cred := &models.Credential{UID: "u1", Email: "a@b.com", DisplayName: "Ana"}

	token, err := ts.Issue(cred)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "a@b.com" || claims.DisplayName != "Ana" {
		t.Errorf("Unexpected claims: %+v", claims)
	}
	if claims.Subject != "u1" || claims.ID == "" {
		t.Errorf("Expected subject and token id, got %+v", claims.RegisteredClaims)
	}
}

func TestTokenService_Expired(t *testing.T) {
	issuedAt := time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC)
	ts := NewTokenService("test-secret", time.Hour, "academy")
	ts.now = func() time.Time { return issuedAt }

	token, err := ts.Issue(&models.Credential{UID: "u1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	ts.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	if _, err := ts.Verify(token); err == nil {
		t.Error("Expected expired token to be rejected")
	}
}

func TestTokenService_Rejects(t *testing.T) {
	ts := NewTokenService("test-secret", time.Hour, "academy")
	token, _ := ts.Issue(&models.Credential{UID: "u1"})

	tests := []struct {
		name  string
		svc   *TokenService
		token string
	}{
		{"other secret", NewTokenService("other-secret", time.Hour, "academy"), token},
		{"other issuer", NewTokenService("test-secret", time.Hour, "elsewhere"), token},
		{"garbage", ts, "not-a-token"},
		{"empty", ts, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.svc.Verify(tt.token); err == nil {
				t.Error("Expected token to be rejected")
			}
		})
	}
}
