package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Email: "t@example.org",
		Name:  "Avery",
		Role:  "teacher",
		Exp:   time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Email != "t@example.org" || claims.Name != "Avery" || claims.Role != "teacher" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Email: "t@example.org",
		Role:  "teacher",
		Exp:   time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	_, err = ParseToken(secret, issued)
	if err == nil {
		t.Fatal("expected ParseToken() to fail for expired token")
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	secret := []byte("secret")
	issued, _ := IssueToken(secret, Claims{
		Email: "t@example.org",
		Role:  "teacher",
		Exp:   time.Now().Add(time.Hour).Unix(),
	})
	if _, err := ParseToken([]byte("other-secret"), issued); err == nil {
		t.Fatal("expected token signed with another secret to fail")
	}
	if _, err := ParseToken(secret, issued+"x"); err == nil {
		t.Fatal("expected tampered token to fail")
	}
}
