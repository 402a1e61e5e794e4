package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jeno-bellido/ich-backend/internal/util"
	"github.com/jeno-bellido/ich-backend/pkg/domain"
	"github.com/jeno-bellido/ich-backend/pkg/store"
	"github.com/jeno-bellido/ich-backend/services/review/internal/app"
)

const sessionCookieName = "token"

type claimsContextKey struct{}

// verifySession gates the wrapped routes on a valid session token, taken
// from the session cookie or an Authorization bearer header. Verified claims
// are attached to the request context.
func (s *Server) verifySession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.app.VerifySession(sessionToken(r))
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, store.ErrMissingCredential) {
				reason = "missing_token"
			}
			if s.metrics != nil {
				s.metrics.RecordSessionRejected(reason)
			}
			s.audit(r, "session.verify", "fail", "reason", reason)
			writeAppError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		ctx = util.ContextWithLogger(ctx, util.LoggerFromContext(ctx).With("user_id", claims.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) (domain.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(domain.Claims)
	return c, ok
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	if token, ok := bearerToken(r); ok {
		return token
	}
	return ""
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

// setSessionCookie transmits a session to a browser on another origin,
// which requires SameSite=None and, in turn, Secure.
func (s *Server) setSessionCookie(w http.ResponseWriter, session app.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: s.sameSite(),
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: s.sameSite(),
	})
}

// SameSite=None is rejected by browsers without Secure, so plain-http
// development falls back to Lax.
func (s *Server) sameSite() http.SameSite {
	if s.cookieSecure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trustedProxies)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	result, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Error("security_alert_failed", "event", event, "err", err)
		return
	}
	if result.Triggered {
		logger.Error("security_alert",
			"event", event,
			"ip", ip,
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}
