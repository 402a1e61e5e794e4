package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jeno-bellido/ich-backend/pkg/domain"
)

const (
	defaultJWTIssuer = "ich-review"
	defaultJWTKeyID  = "jwt-active"
	defaultJWTTTL    = 24 * time.Hour
)

var defaultJWTLeeway = 30 * time.Second

var (
	// ErrMissingCredential is returned when no session token was presented.
	ErrMissingCredential = errors.New("token missing")
	// ErrInvalidCredential is returned for tokens with a bad signature, bad claims, or past expiry.
	ErrInvalidCredential = errors.New("token invalid")
)

// SigningKey is a shared HMAC secret identified by kid.
type SigningKey struct {
	ID     string
	Secret string
}

// JWTOptions configures JWT claim validation behavior.
type JWTOptions struct {
	Issuer string
	Leeway time.Duration
	// PreviousKeys are accepted for verification only, so sessions survive a secret rotation.
	PreviousKeys []SigningKey
}

// JWTSessionStore issues and validates HS256 session tokens.
type JWTSessionStore struct {
	ttl time.Duration

	signerKid string
	signer    []byte
	verifiers map[string][]byte

	issuer string
	leeway time.Duration
	now    func() time.Time
}

type sessionClaims struct {
	UserID   string `json:"_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewJWTSessionStore builds a session store signing with active.
func NewJWTSessionStore(active SigningKey, ttl time.Duration, opts JWTOptions) (*JWTSessionStore, error) {
	if strings.TrimSpace(active.Secret) == "" {
		return nil, errors.New("jwt secret required")
	}
	kid := strings.TrimSpace(active.ID)
	if kid == "" {
		kid = defaultJWTKeyID
	}
	if ttl <= 0 {
		ttl = defaultJWTTTL
	}
	verifiers := map[string][]byte{kid: []byte(active.Secret)}
	for _, key := range opts.PreviousKeys {
		id := strings.TrimSpace(key.ID)
		if id == "" || key.Secret == "" {
			continue
		}
		if _, ok := verifiers[id]; ok {
			return nil, fmt.Errorf("duplicate jwt key id %q", id)
		}
		verifiers[id] = []byte(key.Secret)
	}
	opts = normalizeJWTOptions(opts)
	return &JWTSessionStore{
		ttl:       ttl,
		signerKid: kid,
		signer:    []byte(active.Secret),
		verifiers: verifiers,
		issuer:    opts.Issuer,
		leeway:    opts.Leeway,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// TTL reports how long issued sessions stay valid.
func (s *JWTSessionStore) TTL() time.Duration {
	return s.ttl
}

// NewSession signs claims into a token and returns it with its expiry.
func (s *JWTSessionStore) NewSession(c domain.Claims) (string, time.Time, error) {
	if strings.TrimSpace(c.ID) == "" {
		return "", time.Time{}, errors.New("session subject required")
	}
	now := s.now()
	expires := now.Add(s.ttl)
	claims := sessionClaims{
		UserID:   c.ID,
		Email:    c.Email,
		Username: c.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.signerKid
	signed, err := token.SignedString(s.signer)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expires, nil
}

// Verify validates token and returns the claims it carries.
func (s *JWTSessionStore) Verify(token string) (domain.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Claims{}, ErrMissingCredential
	}
	claims := sessionClaims{}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, errors.New("token key id required")
		}
		secret, ok := s.verifiers[kid]
		if !ok {
			return nil, errors.New("unknown token key")
		}
		return secret, nil
	}, parserOptions...)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !parsed.Valid {
		return domain.Claims{}, ErrInvalidCredential
	}
	if strings.TrimSpace(claims.UserID) == "" || claims.UserID != claims.Subject {
		return domain.Claims{}, fmt.Errorf("%w: subject mismatch", ErrInvalidCredential)
	}
	return domain.Claims{ID: claims.UserID, Email: claims.Email, Username: claims.Username}, nil
}

func normalizeJWTOptions(opts JWTOptions) JWTOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	return opts
}
