package auth

import (
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("super-secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if err := CheckPassword(hash, "super-secret"); err != nil {
		t.Fatalf("expected password to match, got %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", Role: RoleManager, SessionID: "s1"}

	token, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if parsed.UserID != claims.UserID || parsed.Role != claims.Role || parsed.SessionID != claims.SessionID {
		t.Fatalf("claims mismatch: %+v", parsed)
	}

	if _, err := ParseToken("other-secret", token); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken("s", Claims{UserID: "u1", Role: RoleEmployee}, -time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("s", token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid password", password: "Stronger123"},
		{name: "too short", password: "S1hort", wantErr: true},
		{name: "missing uppercase", password: "longpassword1", wantErr: true},
		{name: "missing lowercase", password: "LONGPASSWORD1", wantErr: true},
		{name: "missing number", password: "LongPassword", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestOpaqueTokensAreUniqueAndHashed(t *testing.T) {
	a, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	b, _ := NewOpaqueToken()
	if a == b {
		t.Fatal("expected distinct tokens")
	}
	if HashToken(a) == a || len(HashToken(a)) != 64 {
		t.Fatalf("unexpected hash %q", HashToken(a))
	}
	if HashToken(a) != HashToken(a) {
		t.Fatal("hash must be stable")
	}
}
