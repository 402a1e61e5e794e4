package storage

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// MediaResolver turns stored media references into URLs a browser can load.
// Absolute http(s) URLs pass through; bare object keys are presigned.
type MediaResolver struct {
	presigner Presigner
	ttl       time.Duration
}

// NewMediaResolver builds a resolver. A nil presigner leaves keys untouched.
func NewMediaResolver(p Presigner, ttl time.Duration) *MediaResolver {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MediaResolver{presigner: p, ttl: ttl}
}

// Resolve returns the URL for ref.
func (r *MediaResolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || r == nil || r.presigner == nil || isAbsoluteURL(ref) {
		return ref, nil
	}
	return r.presigner.PresignGet(ctx, strings.TrimPrefix(ref, "/"), r.ttl)
}

func isAbsoluteURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
