package store

import (
	"context"
	"errors"

	"github.com/jeno-bellido/ich-backend/pkg/domain"
)

var (
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("unique constraint violated")
	// ErrNotFound is returned by updates that match no record.
	ErrNotFound = errors.New("record not found")
)

// Store defines persistence operations for users, products, and ratings.
// Implementations must enforce uniqueness of user email, user google id,
// and the (product, author) pair of a rating, reporting violations as ErrConflict.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) error
	UpdateUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (domain.User, bool, error)
	HasUserEmail(ctx context.Context, email string) (bool, error)
	HasGoogleID(ctx context.Context, googleID string) (bool, error)

	// products
	CreateProduct(ctx context.Context, p domain.Product) error
	GetProduct(ctx context.Context, id string) (domain.Product, bool, error)
	ListProductsWithStats(ctx context.Context) ([]domain.ProductWithStats, error)

	// ratings
	FindRating(ctx context.Context, productID, authorID string) (domain.Rating, bool, error)
	CreateRating(ctx context.Context, r domain.Rating) error
	ListRatingsByProduct(ctx context.Context, productID string) ([]domain.RatingDetail, error)
	ListRatingsByAuthor(ctx context.Context, authorID string) ([]domain.RatingDetail, error)

	// aggregates
	ProductSummary(ctx context.Context, productID string) (domain.RatingSummary, error)
	UserStats(ctx context.Context, userID string) (domain.UserStats, error)
	SearchUsers(ctx context.Context, name string) ([]domain.UserWithStats, error)
}

// StatsCache caches per-product rating summaries keyed by a generation.
// Readers fetch the generation before computing a summary and store it under
// that generation; InvalidateProduct advances it.
type StatsCache interface {
	ProductGeneration(ctx context.Context, productID string) (int64, error)
	GetProductSummary(ctx context.Context, productID string, gen int64) (domain.RatingSummary, bool, error)
	SetProductSummary(ctx context.Context, productID string, gen int64, summary domain.RatingSummary) error
	InvalidateProduct(ctx context.Context, productID string) error
}
