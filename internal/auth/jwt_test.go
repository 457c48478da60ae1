package auth

import (
	"testing"
	"time"

	"github.com/lalith-99/areachat/internal/models"
)

const testSecret = "test-secret"

func testUser() *models.User {
	return &models.User{
		ID:        "u1",
		CompanyID: "c1",
		Name:      "Ana",
		Email:     "ana@demo.local",
		Role:      models.RoleEmployee,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testUser(), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}

	if claims.UserID != "u1" || claims.CompanyID != "c1" {
		t.Errorf("claims = %q/%q, want u1/c1", claims.UserID, claims.CompanyID)
	}
	if claims.Role != models.RoleEmployee {
		t.Errorf("claims.Role = %q, want %q", claims.Role, models.RoleEmployee)
	}
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := GenerateToken(testUser(), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	expired, err := GenerateToken(testUser(), testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "other-secret"},
		{"expired", expired, testSecret},
		{"garbage", "not.a.token", testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); err == nil {
				t.Error("ParseToken accepted an invalid token")
			}
		})
	}
}

func TestNewSessionContext(t *testing.T) {
	token, err := GenerateToken(testUser(), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}

	sctx := NewSessionContext(claims)
	if sctx.ParticipantID != "u1" {
		t.Errorf("ParticipantID = %q, want u1", sctx.ParticipantID)
	}
	if sctx.CompanyScope != "c1" {
		t.Errorf("CompanyScope = %q, want c1", sctx.CompanyScope)
	}
	if sctx.IsBoss() {
		t.Error("employee context reports IsBoss")
	}
}
