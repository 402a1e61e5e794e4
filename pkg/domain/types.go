package domain

import "time"

const (
	MinScore = 1
	MaxScore = 5
)

type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"googleId,omitempty"`
	Picture      string    `json:"picture,omitempty"`
	Facebook     string    `json:"facebook,omitempty"`
	File         string    `json:"file,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasPassword reports whether the user can log in with email+password.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

type Product struct {
	ID          string    `json:"_id"`
	AuthorID    string    `json:"author_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	File        string    `json:"file,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Rating struct {
	ID        string    `json:"_id"`
	ProductID string    `json:"product_id"`
	AuthorID  string    `json:"author_id"`
	Score     int       `json:"rating"`
	Review    string    `json:"review,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasReview reports whether the rating carries review text.
func (r Rating) HasReview() bool {
	return r.Review != ""
}

// ValidScore reports whether score lies in [MinScore, MaxScore].
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// Claims are the identity fields carried by a session token.
type Claims struct {
	ID       string `json:"_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// ClaimsFor builds session claims from a stored user.
func ClaimsFor(u User) Claims {
	return Claims{ID: u.ID, Email: u.Email, Username: u.Username}
}

// RatingSummary aggregates the ratings of one product.
// AverageRating is nil when the product has no ratings.
type RatingSummary struct {
	AverageRating   *float64 `json:"averageRating"`
	NumberOfRatings int      `json:"numberOfRatings"`
}

// ProductWithStats is a product joined with its rating summary.
type ProductWithStats struct {
	Product
	RatingSummary
}

// UserStats counts the ratings and reviews written by one user.
type UserStats struct {
	NumRatings int `json:"numRatings"`
	NumReviews int `json:"numReviews"`
}

// UserWithStats is a user joined with its rating counts.
type UserWithStats struct {
	User
	UserStats
}

// RatingDetail is a rating with its product and author expanded.
// Product or Author is nil when the referenced record is absent.
type RatingDetail struct {
	Rating
	Product *Product `json:"product,omitempty"`
	Author  *User    `json:"author,omitempty"`
}

// Summarize computes the rating summary over ratings.
func Summarize(ratings []Rating) RatingSummary {
	summary := RatingSummary{NumberOfRatings: len(ratings)}
	if len(ratings) == 0 {
		return summary
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	avg := float64(sum) / float64(len(ratings))
	summary.AverageRating = &avg
	return summary
}

// CountUserStats counts ratings and non-empty reviews.
func CountUserStats(ratings []Rating) UserStats {
	stats := UserStats{NumRatings: len(ratings)}
	for _, r := range ratings {
		if r.HasReview() {
			stats.NumReviews++
		}
	}
	return stats
}
