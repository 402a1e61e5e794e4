package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jeno-bellido/ich-backend/pkg/domain"
)

func seedMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now().UTC()
	users := []domain.User{
		{ID: "u1", Username: "Alice", Email: "alice@x.io", CreatedAt: now},
		{ID: "u2", Username: "malice", GoogleID: "g-2", CreatedAt: now},
		{ID: "u3", Username: "bob", Email: "bob@x.io", CreatedAt: now},
	}
	for _, u := range users {
		if err := m.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user %s: %v", u.ID, err)
		}
	}
	for _, p := range []domain.Product{
		{ID: "p1", AuthorID: "u3", Title: "first", CreatedAt: now},
		{ID: "p2", AuthorID: "u3", Title: "second", CreatedAt: now},
	} {
		if err := m.CreateProduct(ctx, p); err != nil {
			t.Fatalf("create product %s: %v", p.ID, err)
		}
	}
	return m
}

func TestMemoryStoreUserUniqueness(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)

	err := m.CreateUser(ctx, domain.User{ID: "u9", Username: "dup", Email: "alice@x.io"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected email conflict, got %v", err)
	}
	err = m.CreateUser(ctx, domain.User{ID: "u10", Username: "dup", GoogleID: "g-2"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected google id conflict, got %v", err)
	}
	if ok, err := m.HasGoogleID(ctx, "g-2"); err != nil || !ok {
		t.Fatalf("expected google id present, ok=%v err=%v", ok, err)
	}
	if ok, err := m.HasUserEmail(ctx, "nobody@x.io"); err != nil || ok {
		t.Fatalf("expected email absent, ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreRatingPairIsUnique(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)

	if err := m.CreateRating(ctx, domain.Rating{ID: "r1", ProductID: "p1", AuthorID: "u1", Score: 5}); err != nil {
		t.Fatalf("first rating: %v", err)
	}
	err := m.CreateRating(ctx, domain.Rating{ID: "r2", ProductID: "p1", AuthorID: "u1", Score: 1})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for repeated pair, got %v", err)
	}
	if err := m.CreateRating(ctx, domain.Rating{ID: "r3", ProductID: "p2", AuthorID: "u1", Score: 1}); err != nil {
		t.Fatalf("other product should be accepted: %v", err)
	}
	got, ok, err := m.FindRating(ctx, "p1", "u1")
	if err != nil || !ok {
		t.Fatalf("find rating: ok=%v err=%v", ok, err)
	}
	if got.Score != 5 {
		t.Fatalf("first rating must survive, got score %d", got.Score)
	}
}

func TestMemoryStoreConcurrentRatingsAdmitOne(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := m.CreateRating(ctx, domain.Rating{
				ID: fmt.Sprintf("r-%d", i), ProductID: "p1", AuthorID: "u2", Score: 3,
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted rating, got %d", accepted)
	}
	summary, err := m.ProductSummary(ctx, "p1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.NumberOfRatings != 1 {
		t.Fatalf("expected one stored rating, got %d", summary.NumberOfRatings)
	}
}

func TestMemoryStoreAggregates(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)
	for _, r := range []domain.Rating{
		{ID: "r1", ProductID: "p1", AuthorID: "u1", Score: 5, Review: "great"},
		{ID: "r2", ProductID: "p1", AuthorID: "u2", Score: 4},
		{ID: "r3", ProductID: "p1", AuthorID: "u3", Score: 3, Review: "ok"},
	} {
		if err := m.CreateRating(ctx, r); err != nil {
			t.Fatalf("create rating %s: %v", r.ID, err)
		}
	}

	products, err := m.ListProductsWithStats(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 2 || products[0].ID != "p1" || products[1].ID != "p2" {
		t.Fatalf("unexpected products: %+v", products)
	}
	if products[0].AverageRating == nil || *products[0].AverageRating != 4 || products[0].NumberOfRatings != 3 {
		t.Fatalf("unexpected p1 summary: %+v", products[0].RatingSummary)
	}
	if products[1].AverageRating != nil || products[1].NumberOfRatings != 0 {
		t.Fatalf("expected empty p2 summary, got %+v", products[1].RatingSummary)
	}

	stats, err := m.UserStats(ctx, "u1")
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if stats.NumRatings != 1 || stats.NumReviews != 1 {
		t.Fatalf("unexpected u1 stats: %+v", stats)
	}
	stats, err = m.UserStats(ctx, "u2")
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if stats.NumRatings != 1 || stats.NumReviews != 0 {
		t.Fatalf("unexpected u2 stats: %+v", stats)
	}

	details, err := m.ListRatingsByAuthor(ctx, "u1")
	if err != nil {
		t.Fatalf("ratings by author: %v", err)
	}
	if len(details) != 1 || details[0].Product == nil || details[0].Product.ID != "p1" || details[0].Author == nil {
		t.Fatalf("expected expanded rating, got %+v", details)
	}
	byProduct, err := m.ListRatingsByProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("ratings by product: %v", err)
	}
	if len(byProduct) != 3 || byProduct[1].Author == nil || byProduct[1].Author.Username != "malice" {
		t.Fatalf("unexpected product ratings: %+v", byProduct)
	}
}

func TestMemoryStoreSearchUsersIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)
	if err := m.CreateRating(ctx, domain.Rating{ID: "r1", ProductID: "p1", AuthorID: "u2", Score: 2, Review: "meh"}); err != nil {
		t.Fatalf("create rating: %v", err)
	}

	res, err := m.SearchUsers(ctx, "ALI")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected Alice and malice, got %+v", res)
	}
	if res[1].ID != "u2" || res[1].NumRatings != 1 || res[1].NumReviews != 1 {
		t.Fatalf("unexpected stats for malice: %+v", res[1])
	}
	if res[0].NumRatings != 0 {
		t.Fatalf("expected zero ratings for Alice, got %+v", res[0])
	}

	none, err := m.SearchUsers(ctx, "zed")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %+v", none)
	}
}

func TestMemoryStoreUpdateUser(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)
	if err := m.UpdateUser(ctx, domain.User{ID: "u1", Username: "alice2", Facebook: "fb"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	u, ok, err := m.GetUserByID(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("get user: ok=%v err=%v", ok, err)
	}
	if u.Username != "alice2" || u.Facebook != "fb" || u.Email != "alice@x.io" {
		t.Fatalf("unexpected user after update: %+v", u)
	}
	if err := m.UpdateUser(ctx, domain.User{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreHonorsCanceledContext(t *testing.T) {
	m := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.ListProductsWithStats(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"ann":    "ann",
		"50%":    `50\%`,
		"a_b":    `a\_b`,
		`back\s`: `back\\s`,
	}
	for in, want := range cases {
		if got := escapeLike(in); got != want {
			t.Fatalf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
