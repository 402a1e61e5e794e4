package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeno-bellido/ich-backend/internal/metrics"
	"github.com/jeno-bellido/ich-backend/pkg/domain"
	"github.com/jeno-bellido/ich-backend/pkg/store"
)

// Credentials is either LocalCredentials or FederatedCredentials.
type Credentials interface {
	flow() string
}

// LocalCredentials authenticate with email and password.
type LocalCredentials struct {
	Email    string
	Password string
}

func (LocalCredentials) flow() string { return "local" }

// FederatedCredentials authenticate with an externally issued identity key.
type FederatedCredentials struct {
	ID string
}

func (FederatedCredentials) flow() string { return "federated" }

// Session is an issued credential.
type Session struct {
	Claims    domain.Claims
	Token     string
	ExpiresAt time.Time
}

// ProfileUpdate carries editable profile fields. Empty fields are left unchanged.
type ProfileUpdate struct {
	Username string
	Facebook string
	File     string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a local user with a hashed password.
func (a *App) Register(ctx context.Context, username, email, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return domain.User{}, ErrFieldsRequired
	}
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()

	exists, err := a.store.HasUserEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	digest, err := a.passwords.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		ID:           a.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.User{}, ErrEmailAlreadyExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	a.logger(ctx).Info("user_registered", "user_id", user.ID, "flow", "local")
	return user, nil
}

// CheckEmail reports whether a local account uses email.
func (a *App) CheckEmail(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, nil
	}
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()
	exists, err := a.store.HasUserEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// CheckFederatedID reports whether a user is linked to the federated id.
func (a *App) CheckFederatedID(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()
	exists, err := a.store.HasGoogleID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check google id: %w", err)
	}
	return exists, nil
}

// RegisterFederated creates a password-less user keyed by a federated id.
func (a *App) RegisterFederated(ctx context.Context, id, username, picture string) (domain.User, error) {
	id = strings.TrimSpace(id)
	username = strings.TrimSpace(username)
	if id == "" || username == "" {
		return domain.User{}, ErrFieldsRequired
	}
	now := a.now()
	user := domain.User{
		ID:        a.newID(),
		Username:  username,
		GoogleID:  id,
		Picture:   strings.TrimSpace(picture),
		CreatedAt: now,
		UpdatedAt: now,
	}
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.User{}, ErrFederatedIDAlreadyExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	a.logger(ctx).Info("user_registered", "user_id", user.ID, "flow", "federated")
	return a.presentUser(ctx, user), nil
}

// Authenticate resolves creds to a stored user and issues a session.
// It fails with ErrUserNotFound or ErrPasswordIncorrect for domain mismatches.
func (a *App) Authenticate(ctx context.Context, creds Credentials) (Session, error) {
	flow := creds.flow()
	user, err := a.resolveIdentity(ctx, creds)
	switch {
	case errors.Is(err, ErrUserNotFound):
		a.metrics.RecordAuth(flow, metrics.OutcomeUserNotFound)
		return Session{}, err
	case errors.Is(err, ErrPasswordIncorrect):
		a.metrics.RecordAuth(flow, metrics.OutcomePasswordMismatch)
		return Session{}, err
	case err != nil:
		a.metrics.RecordAuth(flow, metrics.OutcomeError)
		return Session{}, err
	}
	session, err := a.issue(domain.ClaimsFor(user))
	if err != nil {
		a.metrics.RecordAuth(flow, metrics.OutcomeError)
		return Session{}, err
	}
	a.metrics.RecordAuth(flow, metrics.OutcomeSuccess)
	return session, nil
}

func (a *App) resolveIdentity(ctx context.Context, creds Credentials) (domain.User, error) {
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()
	switch c := creds.(type) {
	case LocalCredentials:
		email := normalizeEmail(c.Email)
		if email == "" {
			return domain.User{}, ErrUserNotFound
		}
		user, ok, err := a.store.GetUserByEmail(ctx, email)
		if err != nil {
			return domain.User{}, fmt.Errorf("fetch user: %w", err)
		}
		if !ok {
			return domain.User{}, ErrUserNotFound
		}
		if !user.HasPassword() || !a.passwords.Compare(c.Password, user.PasswordHash) {
			return domain.User{}, ErrPasswordIncorrect
		}
		return user, nil
	case FederatedCredentials:
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return domain.User{}, ErrUserNotFound
		}
		user, ok, err := a.store.GetUserByGoogleID(ctx, id)
		if err != nil {
			return domain.User{}, fmt.Errorf("fetch user: %w", err)
		}
		if !ok {
			return domain.User{}, ErrUserNotFound
		}
		return user, nil
	default:
		return domain.User{}, fmt.Errorf("unsupported credentials %T", creds)
	}
}

func (a *App) issue(claims domain.Claims) (Session, error) {
	token, expires, err := a.sessions.NewSession(claims)
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	return Session{Claims: claims, Token: token, ExpiresAt: expires}, nil
}

// UpdateProfile edits the caller's own profile and issues a session carrying
// the new username.
func (a *App) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (domain.User, Session, error) {
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, Session{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, Session{}, ErrUserNotFound
	}
	if v := strings.TrimSpace(upd.Username); v != "" {
		user.Username = v
	}
	if v := strings.TrimSpace(upd.Facebook); v != "" {
		user.Facebook = v
	}
	if v := strings.TrimSpace(upd.File); v != "" {
		user.File = v
	}
	user.UpdatedAt = a.now()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, Session{}, ErrUserNotFound
		}
		return domain.User{}, Session{}, fmt.Errorf("update user: %w", err)
	}
	session, err := a.issue(domain.ClaimsFor(user))
	if err != nil {
		return domain.User{}, Session{}, err
	}
	return a.presentUser(ctx, user), session, nil
}
