package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte("super-secret"), 24*time.Hour)

	tok, err := iss.Issue("user-123", "a@x.com")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	id, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if id.UserID != "user-123" || id.Email != "a@x.com" {
		t.Fatalf("identity mismatch: %+v", id)
	}
}

func TestIssue_ExpiresOneTTLAfterIssuance(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	iss := NewIssuer([]byte("k"), 24*time.Hour).WithClock(func() time.Time { return now })

	tok, err := iss.Issue("u", "e@x.com")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	if err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if !claims.IssuedAt.Time.Equal(now) {
		t.Fatalf("iat = %v, want %v", claims.IssuedAt.Time, now)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("exp = %v, want %v", claims.ExpiresAt.Time, now.Add(24*time.Hour))
	}
	if claims.Issuer != "api-server" {
		t.Fatalf("iss = %q", claims.Issuer)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	iss := NewIssuer([]byte("secret"), time.Hour).WithClock(func() time.Time { return now })

	tok, err := iss.Issue("u1", "e")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	now = issued.Add(2 * time.Hour)
	_, err = iss.Verify(tok)
	if err != common.ErrTokenExpired {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewIssuer([]byte("right-secret"), time.Hour).Issue("u2", "e")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = NewIssuer([]byte("wrong-secret"), time.Hour).Verify(tok)
	if err != common.ErrInvalidToken {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestVerify_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer([]byte("k"), time.Hour).Verify("not.a.jwt")
	if err != common.ErrInvalidToken {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "api-server",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "u",
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewIssuer(secret, time.Hour).Verify(tok); err != common.ErrInvalidToken {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestVerify_MissingUserID(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte("k"), time.Hour)
	tok, err := iss.Issue("", "e")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := iss.Verify(tok); err != common.ErrInvalidToken {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}
