package auth

import (
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Errorf("CheckPassword should accept the right password: %v", err)
	}
	if err := CheckPassword(hash, "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer(secret, time.Hour)
	token, err := iss.Issue(core.Account{ID: 42, Username: "lydia"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	s, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.AccountID != 42 || s.Username != "lydia" {
		t.Errorf("unexpected session %+v", s)
	}
}

func TestIssuer_Rejects(t *testing.T) {
	iss := NewIssuer(secret, time.Hour)
	token, err := iss.Issue(core.Account{ID: 1, Username: "lydia"})
	if err != nil {
		t.Fatal(err)
	}

	expired := NewIssuer(secret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	tests := []struct {
		name   string
		issuer *Issuer
		token  string
	}{
		{"garbage", iss, "not-a-token"},
		{"wrong secret", NewIssuer("another-secret-another-secret-xx", time.Hour), token},
		{"expired", expired, token},
		{"tampered", iss, token + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.issuer.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
