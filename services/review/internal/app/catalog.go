package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeno-bellido/ich-backend/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// NewProduct carries the fields of a product listing.
type NewProduct struct {
	Title       string
	Description string
	File        string
}

// ProductDetail is a product with its ratings, authors expanded.
type ProductDetail struct {
	Product domain.Product        `json:"product"`
	Ratings []domain.RatingDetail `json:"ratings"`
}

// CreateProduct stores a listing owned by authorID.
func (a *App) CreateProduct(ctx context.Context, authorID string, in NewProduct) (domain.Product, error) {
	in.Title = strings.TrimSpace(in.Title)
	if strings.TrimSpace(authorID) == "" || in.Title == "" {
		return domain.Product{}, ErrFieldsRequired
	}
	product := domain.Product{
		ID:          a.newID(),
		AuthorID:    authorID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		File:        strings.TrimSpace(in.File),
		CreatedAt:   a.now(),
	}
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()
	if err := a.store.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	a.logger(ctx).Info("product_created", "product_id", product.ID, "author_id", authorID)
	return a.presentProduct(ctx, product), nil
}

// ListProducts returns every product with its average rating and rating count.
func (a *App) ListProducts(ctx context.Context) ([]domain.ProductWithStats, error) {
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()
	products, err := a.store.ListProductsWithStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	for i := range products {
		products[i].Product = a.presentProduct(ctx, products[i].Product)
	}
	return products, nil
}

// ProductDetail loads a product and its ratings concurrently.
func (a *App) ProductDetail(ctx context.Context, id string) (ProductDetail, error) {
	ctx, cancel := a.storeCtx(ctx)
	defer cancel()

	var (
		product domain.Product
		found   bool
		ratings []domain.RatingDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		product, found, err = a.store.GetProduct(gctx, id)
		if err != nil {
			return fmt.Errorf("fetch product: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ratings, err = a.store.ListRatingsByProduct(gctx, id)
		if err != nil {
			return fmt.Errorf("list ratings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return ProductDetail{}, err
	}
	if !found {
		return ProductDetail{}, ErrProductNotFound
	}
	return ProductDetail{
		Product: a.presentProduct(ctx, product),
		Ratings: a.presentDetails(ctx, ratings),
	}, nil
}
