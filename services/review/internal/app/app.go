package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jeno-bellido/ich-backend/internal/util"
	"github.com/jeno-bellido/ich-backend/pkg/auth"
	"github.com/jeno-bellido/ich-backend/pkg/domain"
	"github.com/jeno-bellido/ich-backend/pkg/events"
	"github.com/jeno-bellido/ich-backend/pkg/store"
)

const defaultStoreTimeout = 5 * time.Second

// SessionStore issues and verifies session tokens.
type SessionStore interface {
	NewSession(c domain.Claims) (string, time.Time, error)
	Verify(token string) (domain.Claims, error)
}

// PasswordHasher is the password hashing capability.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, digest string) bool
}

// RatingPublisher announces stored ratings to other consumers.
type RatingPublisher interface {
	PublishRating(ctx context.Context, evt events.RatingEvent) error
}

// MediaResolver turns stored media references into client URLs.
type MediaResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Recorder receives domain counters.
type Recorder interface {
	RecordAuth(flow, outcome string)
	RecordRatingSubmitted()
	RecordRatingDuplicate()
	RecordStatsCache(hit bool)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	JWTKeyID        string
	JWTPreviousKeys []store.SigningKey
	JWTIssuer       string
	JWTLeeway       time.Duration
	SessionTTL      time.Duration
	PasswordCost    int
	StoreTimeout    time.Duration
	Store           store.Store
	Sessions        SessionStore
	Passwords       PasswordHasher
	StatsCache      store.StatsCache
	Events          RatingPublisher
	Media           MediaResolver
	Metrics         Recorder
	Now             func() time.Time
	NewID           func() string
}

// App wires identity, ledger and aggregation logic over a Store.
type App struct {
	store        store.Store
	sessions     SessionStore
	passwords    PasswordHasher
	cache        store.StatsCache
	events       RatingPublisher
	media        MediaResolver
	metrics      Recorder
	storeTimeout time.Duration
	now          func() time.Time
	newID        func() string
}

// New constructs the application. Store and Sessions are built from
// DatabaseURL and JWTSecret when not supplied.
func New(cfg Config) (*App, error) {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		jwtStore, err := store.NewJWTSessionStore(
			store.SigningKey{ID: cfg.JWTKeyID, Secret: cfg.JWTSecret},
			cfg.SessionTTL,
			store.JWTOptions{
				Issuer:       cfg.JWTIssuer,
				Leeway:       cfg.JWTLeeway,
				PreviousKeys: cfg.JWTPreviousKeys,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessions = jwtStore
	}

	passwords := cfg.Passwords
	if passwords == nil {
		passwords = auth.NewHasher(cfg.PasswordCost)
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}

	return &App{
		store:        dataStore,
		sessions:     sessions,
		passwords:    passwords,
		cache:        cfg.StatsCache,
		events:       cfg.Events,
		media:        cfg.Media,
		metrics:      metrics,
		storeTimeout: cfg.StoreTimeout,
		now:          now,
		newID:        newID,
	}, nil
}

// VerifySession validates a session token and returns its claims.
// Failures wrap store.ErrMissingCredential or store.ErrInvalidCredential.
func (a *App) VerifySession(token string) (domain.Claims, error) {
	return a.sessions.Verify(token)
}

// storeCtx bounds a store round trip.
func (a *App) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.storeTimeout)
}

func (a *App) logger(ctx context.Context) *slog.Logger {
	return util.LoggerFromContext(ctx)
}

func (a *App) resolveMedia(ctx context.Context, ref string) string {
	if a.media == nil || ref == "" {
		return ref
	}
	resolved, err := a.media.Resolve(ctx, ref)
	if err != nil {
		a.logger(ctx).Warn("media_resolve_failed", "ref", ref, "err", err)
		return ref
	}
	return resolved
}

func (a *App) presentUser(ctx context.Context, u domain.User) domain.User {
	u.File = a.resolveMedia(ctx, u.File)
	u.Picture = a.resolveMedia(ctx, u.Picture)
	return u
}

func (a *App) presentProduct(ctx context.Context, p domain.Product) domain.Product {
	p.File = a.resolveMedia(ctx, p.File)
	return p
}

func (a *App) presentDetails(ctx context.Context, details []domain.RatingDetail) []domain.RatingDetail {
	for i := range details {
		if details[i].Author != nil {
			u := a.presentUser(ctx, *details[i].Author)
			details[i].Author = &u
		}
		if details[i].Product != nil {
			p := a.presentProduct(ctx, *details[i].Product)
			details[i].Product = &p
		}
	}
	return details
}

type nopRecorder struct{}

func (nopRecorder) RecordAuth(string, string) {}
func (nopRecorder) RecordRatingSubmitted()    {}
func (nopRecorder) RecordRatingDuplicate()    {}
func (nopRecorder) RecordStatsCache(bool)     {}
