package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jeno-bellido/ich-backend/pkg/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const migrateLockID int64 = 51731733

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &ProductModel{}, &RatingModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a user. Duplicate email or google id yields ErrConflict.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return translateWriteError(s.db.WithContext(ctx).Create(&model).Error)
}

// UpdateUser writes the mutable profile fields of a user.
func (s *GormStore) UpdateUser(ctx context.Context, u domain.User) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"username":   u.Username,
			"facebook":   u.Facebook,
			"file":       u.File,
			"updated_at": u.UpdatedAt,
		})
	if res.Error != nil {
		return translateWriteError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	return s.firstUser(ctx, "id = ?", id)
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	return s.firstUser(ctx, "email = ?", email)
}

// GetUserByGoogleID looks up a user by federated id.
func (s *GormStore) GetUserByGoogleID(ctx context.Context, googleID string) (domain.User, bool, error) {
	return s.firstUser(ctx, "google_id = ?", googleID)
}

func (s *GormStore) firstUser(ctx context.Context, query string, arg any) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, &UserModel{}, "email = ?", email)
}

// HasGoogleID checks if a federated id exists.
func (s *GormStore) HasGoogleID(ctx context.Context, googleID string) (bool, error) {
	return s.exists(ctx, &UserModel{}, "google_id = ?", googleID)
}

func (s *GormStore) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateProduct inserts a product.
func (s *GormStore) CreateProduct(ctx context.Context, p domain.Product) error {
	model := productToModel(p)
	return translateWriteError(s.db.WithContext(ctx).Create(&model).Error)
}

// GetProduct retrieves a product.
func (s *GormStore) GetProduct(ctx context.Context, id string) (domain.Product, bool, error) {
	var model ProductModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, err
	}
	return productFromModel(model), true, nil
}

type productStatsRow struct {
	ProductModel    `gorm:"embedded"`
	AverageRating   *float64
	NumberOfRatings int
}

// ListProductsWithStats left-joins ratings onto products and aggregates them.
// AVG over an empty group is NULL, which leaves AverageRating nil.
func (s *GormStore) ListProductsWithStats(ctx context.Context) ([]domain.ProductWithStats, error) {
	var rows []productStatsRow
	err := s.db.WithContext(ctx).
		Table("product_models AS p").
		Select("p.*, AVG(r.score)::float8 AS average_rating, COUNT(r.id) AS number_of_ratings").
		Joins("LEFT JOIN rating_models AS r ON r.product_id = p.id").
		Group("p.id").
		Order("p.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.ProductWithStats, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.ProductWithStats{
			Product: productFromModel(row.ProductModel),
			RatingSummary: domain.RatingSummary{
				AverageRating:   row.AverageRating,
				NumberOfRatings: row.NumberOfRatings,
			},
		})
	}
	return res, nil
}

// FindRating returns the rating for a (product, author) pair.
func (s *GormStore) FindRating(ctx context.Context, productID, authorID string) (domain.Rating, bool, error) {
	var model RatingModel
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND author_id = ?", productID, authorID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Rating{}, false, nil
		}
		return domain.Rating{}, false, err
	}
	return ratingFromModel(model), true, nil
}

// CreateRating inserts a rating. A second rating for the same
// (product, author) pair violates idx_rating_product_author and yields ErrConflict.
func (s *GormStore) CreateRating(ctx context.Context, r domain.Rating) error {
	model := ratingToModel(r)
	return translateWriteError(s.db.WithContext(ctx).Create(&model).Error)
}

// ListRatingsByProduct returns a product's ratings with authors expanded.
func (s *GormStore) ListRatingsByProduct(ctx context.Context, productID string) ([]domain.RatingDetail, error) {
	ratings, err := s.listRatings(ctx, "product_id = ?", productID)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, ratings, false)
}

// ListRatingsByAuthor returns a user's ratings with products and authors expanded.
func (s *GormStore) ListRatingsByAuthor(ctx context.Context, authorID string) ([]domain.RatingDetail, error) {
	ratings, err := s.listRatings(ctx, "author_id = ?", authorID)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, ratings, true)
}

func (s *GormStore) listRatings(ctx context.Context, query string, arg any) ([]domain.Rating, error) {
	var models []RatingModel
	if err := s.db.WithContext(ctx).Where(query, arg).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Rating, 0, len(models))
	for _, m := range models {
		res = append(res, ratingFromModel(m))
	}
	return res, nil
}

// expand resolves author (and optionally product) references in two IN queries.
func (s *GormStore) expand(ctx context.Context, ratings []domain.Rating, withProduct bool) ([]domain.RatingDetail, error) {
	out := make([]domain.RatingDetail, 0, len(ratings))
	if len(ratings) == 0 {
		return out, nil
	}
	authorIDs := make([]string, 0, len(ratings))
	productIDs := make([]string, 0, len(ratings))
	for _, r := range ratings {
		authorIDs = append(authorIDs, r.AuthorID)
		productIDs = append(productIDs, r.ProductID)
	}

	var userModels []UserModel
	if err := s.db.WithContext(ctx).Where("id IN ?", authorIDs).Find(&userModels).Error; err != nil {
		return nil, fmt.Errorf("expand authors: %w", err)
	}
	users := make(map[string]domain.User, len(userModels))
	for _, m := range userModels {
		users[m.ID] = userFromModel(m)
	}

	products := map[string]domain.Product{}
	if withProduct {
		var productModels []ProductModel
		if err := s.db.WithContext(ctx).Where("id IN ?", productIDs).Find(&productModels).Error; err != nil {
			return nil, fmt.Errorf("expand products: %w", err)
		}
		for _, m := range productModels {
			products[m.ID] = productFromModel(m)
		}
	}

	for _, r := range ratings {
		detail := domain.RatingDetail{Rating: r}
		if u, ok := users[r.AuthorID]; ok {
			detail.Author = &u
		}
		if p, ok := products[r.ProductID]; ok {
			detail.Product = &p
		}
		out = append(out, detail)
	}
	return out, nil
}

// ProductSummary aggregates the ratings of one product.
func (s *GormStore) ProductSummary(ctx context.Context, productID string) (domain.RatingSummary, error) {
	var (
		avg   sql.NullFloat64
		count int64
	)
	row := s.db.WithContext(ctx).Raw(
		"SELECT AVG(score)::float8, COUNT(*) FROM rating_models WHERE product_id = ?",
		productID,
	).Row()
	if err := row.Scan(&avg, &count); err != nil {
		return domain.RatingSummary{}, err
	}
	summary := domain.RatingSummary{NumberOfRatings: int(count)}
	if avg.Valid {
		v := avg.Float64
		summary.AverageRating = &v
	}
	return summary, nil
}

// UserStats counts a user's ratings and the ones carrying review text.
func (s *GormStore) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	var ratings, reviews int64
	row := s.db.WithContext(ctx).Raw(
		"SELECT COUNT(*), COUNT(*) FILTER (WHERE review <> '') FROM rating_models WHERE author_id = ?",
		userID,
	).Row()
	if err := row.Scan(&ratings, &reviews); err != nil {
		return domain.UserStats{}, err
	}
	return domain.UserStats{NumRatings: int(ratings), NumReviews: int(reviews)}, nil
}

type userStatsRow struct {
	UserModel  `gorm:"embedded"`
	NumRatings int
	NumReviews int
}

// SearchUsers matches usernames containing name, case-insensitively, and
// joins per-user rating counts. The joined ratings are not returned.
func (s *GormStore) SearchUsers(ctx context.Context, name string) ([]domain.UserWithStats, error) {
	var rows []userStatsRow
	err := s.db.WithContext(ctx).
		Table("user_models AS u").
		Select("u.*, COUNT(r.id) AS num_ratings, COUNT(r.id) FILTER (WHERE r.review <> '') AS num_reviews").
		Joins("LEFT JOIN rating_models AS r ON r.author_id = u.id").
		Where(`u.username ILIKE ? ESCAPE '\'`, "%"+escapeLike(name)+"%").
		Group("u.id").
		Order("u.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.UserWithStats, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.UserWithStats{
			User:      userFromModel(row.UserModel),
			UserStats: domain.UserStats{NumRatings: row.NumRatings, NumReviews: row.NumReviews},
		})
	}
	return res, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        optionalString(u.Email),
		PasswordHash: u.PasswordHash,
		GoogleID:     optionalString(u.GoogleID),
		Picture:      u.Picture,
		Facebook:     u.Facebook,
		File:         u.File,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        derefString(m.Email),
		PasswordHash: m.PasswordHash,
		GoogleID:     derefString(m.GoogleID),
		Picture:      m.Picture,
		Facebook:     m.Facebook,
		File:         m.File,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func productToModel(p domain.Product) ProductModel {
	return ProductModel{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		Title:       p.Title,
		Description: p.Description,
		File:        p.File,
		CreatedAt:   p.CreatedAt,
	}
}

func productFromModel(m ProductModel) domain.Product {
	return domain.Product{
		ID:          m.ID,
		AuthorID:    m.AuthorID,
		Title:       m.Title,
		Description: m.Description,
		File:        m.File,
		CreatedAt:   m.CreatedAt,
	}
}

func ratingToModel(r domain.Rating) RatingModel {
	return RatingModel{
		ID:        r.ID,
		ProductID: r.ProductID,
		AuthorID:  r.AuthorID,
		Score:     r.Score,
		Review:    r.Review,
		CreatedAt: r.CreatedAt,
	}
}

func ratingFromModel(m RatingModel) domain.Rating {
	return domain.Rating{
		ID:        m.ID,
		ProductID: m.ProductID,
		AuthorID:  m.AuthorID,
		Score:     m.Score,
		Review:    m.Review,
		CreatedAt: m.CreatedAt,
	}
}

// optionalString maps "" to NULL so unique indexes only cover present values.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
