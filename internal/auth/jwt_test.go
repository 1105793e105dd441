package auth

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not be the plain password")
	}
	for pw, ok := range map[string]bool{"correct horse": true, "Correct horse": false, "": false} {
		if err := CheckPassword(hash, pw); (err == nil) != ok {
			t.Errorf("CheckPassword(%q) = %v, want match=%v", pw, err, ok)
		}
	}
}

func TestJWTManager_Claims(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)
	id := bson.NewObjectID()

	tests := []struct {
		email, profession string
		wantEmail         string
	}{
		{"founder@example.com", "student", "founder@example.com"},
		{"  Money@Example.COM ", "investor", "money@example.com"},
		{"ops@example.com", "", "ops@example.com"},
	}
	for _, tt := range tests {
		token, exp, err := m.GenerateTokenWithProfession(id, tt.email, tt.profession)
		if err != nil {
			t.Fatalf("GenerateTokenWithProfession(%q): %v", tt.email, err)
		}
		if time.Until(exp) <= 0 {
			t.Errorf("expiry should be in the future, got %v", exp)
		}
		claims, err := m.VerifyToken(token)
		if err != nil {
			t.Fatalf("VerifyToken: %v", err)
		}
		if claims.UserID != id.Hex() || claims.Email != tt.wantEmail || claims.Profession != tt.profession {
			t.Errorf("unexpected claims for %q: %+v", tt.email, claims)
		}
	}
}

func TestJWTManager_RejectsBadTokens(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)
	other := NewJWTManager("other-secret", 5*time.Minute)
	expired := NewJWTManager("test-secret", -time.Minute)

	foreign, _, _ := other.GenerateToken(bson.NewObjectID(), "a@example.com")
	stale, _, _ := expired.GenerateToken(bson.NewObjectID(), "a@example.com")

	for name, tok := range map[string]string{"foreign": foreign, "expired": stale, "garbage": "not.a.jwt"} {
		if _, err := m.VerifyToken(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestJWTManager_Rotation(t *testing.T) {
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	m := NewJWTManagerFromKeys(keys, "k2", 5*time.Minute)

	id := bson.NewObjectID()

	tkn2, _, err := m.GenerateToken(id, "rot@example.com")
	if err != nil {
		t.Fatalf("GenerateToken (k2) failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn2); err != nil {
		t.Fatalf("VerifyToken (k2) failed: %v", err)
	}

	// a token issued while k1 was active
	mOld := NewJWTManagerFromKeys(keys, "k1", 5*time.Minute)
	tkn1, _, err := mOld.GenerateToken(id, "rot@example.com")
	if err != nil {
		t.Fatalf("GenerateToken (k1) failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn1); err != nil {
		t.Fatalf("VerifyToken (old k1) failed: %v", err)
	}

	// once k1 is retired its tokens stop verifying
	retired := NewJWTManagerFromKeys(map[string]string{"k2": "secret-two"}, "k2", 5*time.Minute)
	if _, err := retired.VerifyToken(tkn1); err == nil {
		t.Fatal("token signed with a retired key should be rejected")
	}
}

func TestJWTManager_UnknownActiveKidUsesSmallestKid(t *testing.T) {
	m := NewJWTManagerFromKeys(map[string]string{"k9": "nine", "k10": "ten", "k2": "two"}, "missing", time.Minute)
	if m.activeKid != "k10" {
		t.Fatalf("active kid = %q, want the lexically smallest %q", m.activeKid, "k10")
	}
}

func TestParseKeys(t *testing.T) {
	keys, err := ParseKeys("k1:one, k2:two:with-colon,")
	if err != nil {
		t.Fatalf("ParseKeys failed: %v", err)
	}
	if len(keys) != 2 || keys["k1"] != "one" || keys["k2"] != "two:with-colon" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	for _, bad := range []string{"", "nokid", ":secret", "k1:"} {
		if _, err := ParseKeys(bad); err == nil {
			t.Errorf("ParseKeys(%q) should fail", bad)
		}
	}
}
