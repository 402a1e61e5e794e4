package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeno-bellido/ich-backend/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// UserDetail is a public user profile with its rating history.
type UserDetail struct {
	User       domain.User           `json:"user"`
	NumRatings int                   `json:"numRatings"`
	NumReviews int                   `json:"numReviews"`
	Ratings    []domain.RatingDetail `json:"ratings"`
}

// Profile is the authenticated user's own view.
type Profile struct {
	domain.Claims
	Ratings         []domain.RatingDetail `json:"ratings"`
	NumberOfRatings int                   `json:"numberOfRatings"`
	NumberOfReviews int                   `json:"numberOfReviews"`
}

// GetUser returns a user record by id.
func (a *App) GetUser(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, ErrFieldsRequired
	}
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()
	user, ok, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return a.presentUser(ctx, user), nil
}

// UserDetail loads a user, the user's rating counts, and the expanded ratings.
func (a *App) UserDetail(ctx context.Context, id string) (UserDetail, error) {
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()

	var (
		user    domain.User
		found   bool
		stats   domain.UserStats
		ratings []domain.RatingDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, found, err = a.store.GetUserByID(gctx, id)
		if err != nil {
			return fmt.Errorf("fetch user: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stats, err = a.store.UserStats(gctx, id)
		if err != nil {
			return fmt.Errorf("user stats: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ratings, err = a.store.ListRatingsByAuthor(gctx, id)
		if err != nil {
			return fmt.Errorf("list ratings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return UserDetail{}, err
	}
	if !found {
		return UserDetail{}, ErrUserNotFound
	}
	return UserDetail{
		User:       a.presentUser(ctx, user),
		NumRatings: stats.NumRatings,
		NumReviews: stats.NumReviews,
		Ratings:    a.presentDetails(ctx, ratings),
	}, nil
}

// Profile returns the caller's claims with their ratings and counts.
func (a *App) Profile(ctx context.Context, claims domain.Claims) (Profile, error) {
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()
	ratings, err := a.store.ListRatingsByAuthor(ctx, claims.ID)
	if err != nil {
		return Profile{}, fmt.Errorf("list ratings: %w", err)
	}
	plain := make([]domain.Rating, 0, len(ratings))
	for _, r := range ratings {
		plain = append(plain, r.Rating)
	}
	stats := domain.CountUserStats(plain)
	return Profile{
		Claims:          claims,
		Ratings:         a.presentDetails(ctx, ratings),
		NumberOfRatings: stats.NumRatings,
		NumberOfReviews: stats.NumReviews,
	}, nil
}

// SearchUsers finds users whose username contains name, ignoring case,
// with their rating and review counts.
func (a *App) SearchUsers(ctx context.Context, name string) ([]domain.UserWithStats, error) {
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()
	users, err := a.store.SearchUsers(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	for i := range users {
		users[i].User = a.presentUser(ctx, users[i].User)
	}
	return users, nil
}
