package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           string  `gorm:"primaryKey"`
	Username     string  `gorm:"not null;index"`
	Email        *string `gorm:"uniqueIndex"`
	PasswordHash string
	GoogleID     *string `gorm:"uniqueIndex"`
	Picture      string
	Facebook     string
	File         string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ProductModel struct {
	ID          string `gorm:"primaryKey"`
	AuthorID    string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	File        string
	CreatedAt   time.Time `gorm:"not null;index"`
}

// RatingModel carries the composite unique key that makes one rating per
// (product, author) a storage-level guarantee.
type RatingModel struct {
	ID        string    `gorm:"primaryKey"`
	ProductID string    `gorm:"not null;uniqueIndex:idx_rating_product_author,priority:1"`
	AuthorID  string    `gorm:"not null;uniqueIndex:idx_rating_product_author,priority:2;index"`
	Score     int       `gorm:"not null;check:chk_rating_score,score >= 1 AND score <= 5"`
	Review    string    `gorm:"type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
}
