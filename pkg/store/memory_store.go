package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jeno-bellido/ich-backend/pkg/domain"
)

type ratingKey struct {
	productID string
	authorID  string
}

// MemoryStore keeps users, products and ratings in-process.
// Used for local runs without Postgres and in tests.
type MemoryStore struct {
	mu sync.RWMutex

	users     map[string]domain.User // key: user ID
	userOrder []string
	email     map[string]string // email -> user ID
	google    map[string]string // google id -> user ID

	products     map[string]domain.Product
	productOrder []string

	ratings     map[string]domain.Rating
	ratingOrder []string
	pairs       map[ratingKey]string // (product, author) -> rating ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		google:   make(map[string]string),
		products: make(map[string]domain.Product),
		ratings:  make(map[string]domain.Rating),
		pairs:    make(map[ratingKey]string),
	}
}

// CreateUser registers a user, enforcing unique email and google id.
func (m *MemoryStore) CreateUser(ctx context.Context, u domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return fmt.Errorf("%w: user id %s", ErrConflict, u.ID)
	}
	if u.Email != "" {
		if _, ok := m.email[u.Email]; ok {
			return fmt.Errorf("%w: email", ErrConflict)
		}
	}
	if u.GoogleID != "" {
		if _, ok := m.google[u.GoogleID]; ok {
			return fmt.Errorf("%w: google id", ErrConflict)
		}
	}
	m.users[u.ID] = u
	m.userOrder = append(m.userOrder, u.ID)
	if u.Email != "" {
		m.email[u.Email] = u.ID
	}
	if u.GoogleID != "" {
		m.google[u.GoogleID] = u.ID
	}
	return nil
}

// UpdateUser writes the mutable profile fields of a user.
func (m *MemoryStore) UpdateUser(ctx context.Context, u domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Username = u.Username
	cur.Facebook = u.Facebook
	cur.File = u.File
	cur.UpdatedAt = u.UpdatedAt
	m.users[u.ID] = cur
	return nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	return m.userByIndex(ctx, func() (string, bool) {
		id, ok := m.email[email]
		return id, ok
	})
}

// GetUserByGoogleID looks up a user by federated id.
func (m *MemoryStore) GetUserByGoogleID(ctx context.Context, googleID string) (domain.User, bool, error) {
	return m.userByIndex(ctx, func() (string, bool) {
		id, ok := m.google[googleID]
		return id, ok
	})
}

func (m *MemoryStore) userByIndex(ctx context.Context, lookup func() (string, bool)) (domain.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := lookup()
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	_, ok, err := m.GetUserByEmail(ctx, email)
	return ok, err
}

// HasGoogleID checks if a federated id exists.
func (m *MemoryStore) HasGoogleID(ctx context.Context, googleID string) (bool, error) {
	_, ok, err := m.GetUserByGoogleID(ctx, googleID)
	return ok, err
}

// CreateProduct stores a product and tracks insertion order.
func (m *MemoryStore) CreateProduct(ctx context.Context, p domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; ok {
		return fmt.Errorf("%w: product id %s", ErrConflict, p.ID)
	}
	m.products[p.ID] = p
	m.productOrder = append(m.productOrder, p.ID)
	return nil
}

// GetProduct retrieves a product by ID.
func (m *MemoryStore) GetProduct(ctx context.Context, id string) (domain.Product, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	return p, ok, nil
}

// ListProductsWithStats returns products in insertion order with their summaries.
func (m *MemoryStore) ListProductsWithStats(ctx context.Context) ([]domain.ProductWithStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	byProduct := make(map[string][]domain.Rating, len(m.products))
	for _, id := range m.ratingOrder {
		r := m.ratings[id]
		byProduct[r.ProductID] = append(byProduct[r.ProductID], r)
	}
	res := make([]domain.ProductWithStats, 0, len(m.productOrder))
	for _, id := range m.productOrder {
		p, ok := m.products[id]
		if !ok {
			continue
		}
		res = append(res, domain.ProductWithStats{
			Product:       p,
			RatingSummary: domain.Summarize(byProduct[id]),
		})
	}
	return res, nil
}

// FindRating returns the rating for a (product, author) pair.
func (m *MemoryStore) FindRating(ctx context.Context, productID, authorID string) (domain.Rating, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Rating{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.pairs[ratingKey{productID: productID, authorID: authorID}]
	if !ok {
		return domain.Rating{}, false, nil
	}
	return m.ratings[id], true, nil
}

// CreateRating stores a rating. The pair check and insert share one lock,
// so concurrent submissions for the same pair admit exactly one.
func (m *MemoryStore) CreateRating(ctx context.Context, r domain.Rating) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := ratingKey{productID: r.ProductID, authorID: r.AuthorID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pairs[key]; ok {
		return fmt.Errorf("%w: rating for product %s by %s", ErrConflict, r.ProductID, r.AuthorID)
	}
	m.ratings[r.ID] = r
	m.ratingOrder = append(m.ratingOrder, r.ID)
	m.pairs[key] = r.ID
	return nil
}

// ListRatingsByProduct returns a product's ratings with authors expanded.
func (m *MemoryStore) ListRatingsByProduct(ctx context.Context, productID string) ([]domain.RatingDetail, error) {
	return m.listDetails(ctx, func(r domain.Rating) bool { return r.ProductID == productID }, false)
}

// ListRatingsByAuthor returns a user's ratings with products and authors expanded.
func (m *MemoryStore) ListRatingsByAuthor(ctx context.Context, authorID string) ([]domain.RatingDetail, error) {
	return m.listDetails(ctx, func(r domain.Rating) bool { return r.AuthorID == authorID }, true)
}

func (m *MemoryStore) listDetails(ctx context.Context, match func(domain.Rating) bool, withProduct bool) ([]domain.RatingDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.RatingDetail, 0)
	for _, id := range m.ratingOrder {
		r := m.ratings[id]
		if !match(r) {
			continue
		}
		detail := domain.RatingDetail{Rating: r}
		if u, ok := m.users[r.AuthorID]; ok {
			detail.Author = &u
		}
		if withProduct {
			if p, ok := m.products[r.ProductID]; ok {
				detail.Product = &p
			}
		}
		res = append(res, detail)
	}
	return res, nil
}

// ProductSummary aggregates the ratings of one product.
func (m *MemoryStore) ProductSummary(ctx context.Context, productID string) (domain.RatingSummary, error) {
	ratings, err := m.collect(ctx, func(r domain.Rating) bool { return r.ProductID == productID })
	if err != nil {
		return domain.RatingSummary{}, err
	}
	return domain.Summarize(ratings), nil
}

// UserStats counts a user's ratings and reviews.
func (m *MemoryStore) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	ratings, err := m.collect(ctx, func(r domain.Rating) bool { return r.AuthorID == userID })
	if err != nil {
		return domain.UserStats{}, err
	}
	return domain.CountUserStats(ratings), nil
}

func (m *MemoryStore) collect(ctx context.Context, match func(domain.Rating) bool) ([]domain.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Rating
	for _, id := range m.ratingOrder {
		if r := m.ratings[id]; match(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

// SearchUsers matches usernames containing name, case-insensitively.
func (m *MemoryStore) SearchUsers(ctx context.Context, name string) ([]domain.UserWithStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	byAuthor := make(map[string][]domain.Rating)
	for _, id := range m.ratingOrder {
		r := m.ratings[id]
		byAuthor[r.AuthorID] = append(byAuthor[r.AuthorID], r)
	}
	res := make([]domain.UserWithStats, 0)
	for _, id := range m.userOrder {
		u, ok := m.users[id]
		if !ok || !strings.Contains(strings.ToLower(u.Username), needle) {
			continue
		}
		res = append(res, domain.UserWithStats{
			User:      u,
			UserStats: domain.CountUserStats(byAuthor[id]),
		})
	}
	return res, nil
}
