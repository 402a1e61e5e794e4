package store

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jeno-bellido/ich-backend/pkg/domain"
)

func newTestSessionStore(t *testing.T, kid, secret string, opts JWTOptions) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore(SigningKey{ID: kid, Secret: secret}, 24*time.Hour, opts)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}

func TestJWTSessionStoreRoundTripsClaims(t *testing.T) {
	s := newTestSessionStore(t, "k1", "secret-1", JWTOptions{})
	want := domain.Claims{ID: "u1", Email: "a@x.io", Username: "ann"}

	token, expires, err := s.NewSession(want)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if d := time.Until(expires); d < 23*time.Hour || d > 25*time.Hour {
		t.Fatalf("expected ~24h expiry, got %v", d)
	}
	got, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != want {
		t.Fatalf("claims mismatch: got %+v want %+v", got, want)
	}
}

func TestJWTSessionStoreTokensAreDistinct(t *testing.T) {
	s := newTestSessionStore(t, "k1", "secret-1", JWTOptions{})
	c := domain.Claims{ID: "u1", Email: "a@x.io", Username: "ann"}
	first, _, err := s.NewSession(c)
	if err != nil {
		t.Fatalf("first session: %v", err)
	}
	second, _, err := s.NewSession(c)
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens for repeated issue")
	}
}

func TestJWTSessionStoreRejectsForeignSecret(t *testing.T) {
	signing := newTestSessionStore(t, "k1", "secret-a", JWTOptions{})
	verify := newTestSessionStore(t, "k1", "secret-b", JWTOptions{})

	token, _, err := signing.NewSession(domain.Claims{ID: "u1"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := verify.Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestJWTSessionStoreRejectsExpiredToken(t *testing.T) {
	s := newTestSessionStore(t, "k1", "secret-1", JWTOptions{Leeway: time.Second})
	issuedAt := time.Now().UTC().Add(-25 * time.Hour)
	s.now = func() time.Time { return issuedAt }
	token, _, err := s.NewSession(domain.Claims{ID: "u1"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.now = func() time.Time { return time.Now().UTC() }

	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}
}

func TestJWTSessionStoreAcceptsPreviousKeyAfterRotation(t *testing.T) {
	old := newTestSessionStore(t, "k-old", "secret-old", JWTOptions{})
	token, _, err := old.NewSession(domain.Claims{ID: "u1", Username: "ann"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	rotated := newTestSessionStore(t, "k-new", "secret-new", JWTOptions{
		PreviousKeys: []SigningKey{{ID: "k-old", Secret: "secret-old"}},
	})
	got, err := rotated.Verify(token)
	if err != nil {
		t.Fatalf("verify with previous key: %v", err)
	}
	if got.ID != "u1" {
		t.Fatalf("unexpected subject %q", got.ID)
	}

	fresh := newTestSessionStore(t, "k-new", "secret-new", JWTOptions{})
	if _, err := fresh.Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected unknown kid to be invalid, got %v", err)
	}
}

func TestJWTSessionStoreMissingToken(t *testing.T) {
	s := newTestSessionStore(t, "k1", "secret-1", JWTOptions{})
	if _, err := s.Verify("  "); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
	if _, err := s.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected malformed token to be invalid, got %v", err)
	}
}

func TestJWTSessionStoreRejectsOtherAlgorithms(t *testing.T) {
	s := newTestSessionStore(t, "k1", "secret-1", JWTOptions{})
	claims := sessionClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    defaultJWTIssuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	token.Header["kid"] = "k1"
	signed, err := token.SignedString([]byte("secret-1"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Verify(signed); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected HS512 token to be rejected, got %v", err)
	}
}

func TestNewJWTSessionStoreRequiresSecret(t *testing.T) {
	if _, err := NewJWTSessionStore(SigningKey{ID: "k1"}, time.Hour, JWTOptions{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
