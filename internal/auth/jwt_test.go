package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateAndParseJWT(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	token, err := GenerateJWT("test-secret", userID, orgID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ParseJWT("test-secret", token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != userID {
		t.Errorf("user id = %s, want %s", claims.UserID, userID)
	}
	if claims.OrganizationID != orgID {
		t.Errorf("organization id = %s, want %s", claims.OrganizationID, orgID)
	}
	if claims.Issuer != "meetingbots" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
}

func TestParseJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("secret-a", uuid.New(), uuid.New(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT("secret-b", token); err == nil {
		t.Error("token parsed with wrong secret")
	}
}

func TestParseJWTExpired(t *testing.T) {
	token, err := GenerateJWT("test-secret", uuid.New(), uuid.New(), time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := ParseJWT("test-secret", token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestParseJWTGarbage(t *testing.T) {
	if _, err := ParseJWT("test-secret", "not-a-token"); err == nil {
		t.Error("garbage accepted as token")
	}
}
