package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestNewVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewVerifier("  ", ""); err == nil {
		t.Error("NewVerifier with blank secret succeeded")
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	v, err := NewVerifier("s3cret", "loyalinn")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	tok, err := v.Sign("user-42", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	got, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != "user-42" {
		t.Errorf("Verify = %q, want %q", got, "user-42")
	}
}

func TestVerify_Rejects(t *testing.T) {
	v, _ := NewVerifier("s3cret", "loyalinn")
	other, _ := NewVerifier("other", "loyalinn")
	wrongIssuer, _ := NewVerifier("s3cret", "someone-else")

	expired := func() string {
		old, _ := NewVerifier("s3cret", "loyalinn")
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tok, _ := old.Sign("user-42", time.Hour)
		return tok
	}()
	otherKey, _ := other.Sign("user-42", time.Hour)
	issuer, _ := wrongIssuer.Sign("user-42", time.Hour)
	noSubject, _ := v.Sign("", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-42"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"wrong key":    otherKey,
		"expired":      expired,
		"wrong issuer": issuer,
		"no subject":   noSubject,
		"alg none":     none,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(tok); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Verify() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer   abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
