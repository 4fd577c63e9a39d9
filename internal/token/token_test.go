package token_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/tourbook/internal/token"
	"github.com/golang-jwt/jwt/v5"
)

const testKey = "token-test-secret-at-least-32-chars!"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	svc := token.NewService([]byte(testKey), time.Hour)

	for _, id := range []string{"user-1", "0b6f7c1e-4a43-4f0e-9d9c-0d8a1f1e2a3b", "x"} {
		raw, err := svc.Issue(id)
		if err != nil {
			t.Fatalf("issue %q: %v", id, err)
		}
		claims, err := svc.Verify(raw)
		if err != nil {
			t.Fatalf("verify %q: %v", id, err)
		}
		if claims.SubjectID != id {
			t.Errorf("SubjectID = %q, want %q", claims.SubjectID, id)
		}
	}
}

func TestVerify_CarriesIssueTime(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	svc := token.NewService([]byte(testKey), time.Hour, token.WithClock(fixedClock(issued)))

	raw, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !claims.IssuedAt.Equal(issued) {
		t.Errorf("IssuedAt = %v, want %v", claims.IssuedAt, issued)
	}
	if !claims.ExpiresAt.Equal(issued.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, issued.Add(time.Hour))
	}
}

func TestVerify_Expired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	issuer := token.NewService([]byte(testKey), time.Hour, token.WithClock(fixedClock(issued)))
	verifier := token.NewService([]byte(testKey), time.Hour)

	raw, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = verifier.Verify(raw)
	if !errors.Is(err, token.ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
	if errors.Is(err, token.ErrInvalid) {
		t.Error("expired token must not also report ErrInvalid")
	}
}

func TestVerify_WrongKey(t *testing.T) {
	raw, err := token.NewService([]byte("another-secret-that-is-32-chars!!"), time.Hour).Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = token.NewService([]byte(testKey), time.Hour).Verify(raw)
	if !errors.Is(err, token.ErrInvalid) {
		t.Errorf("want ErrInvalid, got %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	svc := token.NewService([]byte(testKey), time.Hour)

	for _, raw := range []string{"", "not.a.jwt", "loggedout"} {
		if _, err := svc.Verify(raw); !errors.Is(err, token.ErrInvalid) {
			t.Errorf("Verify(%q) = %v, want ErrInvalid", raw, err)
		}
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := token.NewService([]byte(testKey), time.Hour).Verify(raw); !errors.Is(err, token.ErrInvalid) {
		t.Errorf("want ErrInvalid for HS512 token, got %v", err)
	}
}

func TestVerify_RequiresExpiryAndSubject(t *testing.T) {
	sign := func(c jwt.RegisteredClaims) string {
		t.Helper()
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testKey))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return raw
	}
	now := time.Now()
	svc := token.NewService([]byte(testKey), time.Hour)

	noExp := sign(jwt.RegisteredClaims{Subject: "user-1", IssuedAt: jwt.NewNumericDate(now)})
	if _, err := svc.Verify(noExp); !errors.Is(err, token.ErrInvalid) {
		t.Errorf("token without exp: want ErrInvalid, got %v", err)
	}

	noSub := sign(jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})
	if _, err := svc.Verify(noSub); !errors.Is(err, token.ErrInvalid) {
		t.Errorf("token without sub: want ErrInvalid, got %v", err)
	}
}
