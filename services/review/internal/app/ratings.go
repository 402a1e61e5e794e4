package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeno-bellido/ich-backend/pkg/domain"
	"github.com/jeno-bellido/ich-backend/pkg/events"
	"github.com/jeno-bellido/ich-backend/pkg/store"
)

// RatingInput is a rating submission.
type RatingInput struct {
	ProductID string
	AuthorID  string
	Score     int
	Review    string
}

// SubmitRating records one rating per (product, author). The pre-check keeps
// the common duplicate cheap; the store's composite unique key decides races.
func (a *App) SubmitRating(ctx context.Context, in RatingInput) (domain.Rating, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.AuthorID = strings.TrimSpace(in.AuthorID)
	in.Review = strings.TrimSpace(in.Review)
	if in.ProductID == "" || in.AuthorID == "" {
		return domain.Rating{}, ErrFieldsRequired
	}
	if !domain.ValidScore(in.Score) {
		return domain.Rating{}, ErrInvalidScore
	}

	storeCtx, cancel := a.storeCtx(ctx)
	defer cancel()

	if _, ok, err := a.store.GetProduct(storeCtx, in.ProductID); err != nil {
		return domain.Rating{}, fmt.Errorf("fetch product: %w", err)
	} else if !ok {
		return domain.Rating{}, ErrProductNotFound
	}
	if _, ok, err := a.store.GetUserByID(storeCtx, in.AuthorID); err != nil {
		return domain.Rating{}, fmt.Errorf("fetch author: %w", err)
	} else if !ok {
		return domain.Rating{}, ErrUserNotFound
	}
	if _, exists, err := a.store.FindRating(storeCtx, in.ProductID, in.AuthorID); err != nil {
		return domain.Rating{}, fmt.Errorf("find rating: %w", err)
	} else if exists {
		a.metrics.RecordRatingDuplicate()
		return domain.Rating{}, ErrDuplicateRating
	}

	rating := domain.Rating{
		ID:        a.newID(),
		ProductID: in.ProductID,
		AuthorID:  in.AuthorID,
		Score:     in.Score,
		Review:    in.Review,
		CreatedAt: a.now(),
	}
	if err := a.store.CreateRating(storeCtx, rating); err != nil {
		if errors.Is(err, store.ErrConflict) {
			a.metrics.RecordRatingDuplicate()
			return domain.Rating{}, ErrDuplicateRating
		}
		return domain.Rating{}, fmt.Errorf("create rating: %w", err)
	}
	a.metrics.RecordRatingSubmitted()

	logger := a.logger(ctx)
	if a.cache != nil {
		if err := a.cache.InvalidateProduct(ctx, rating.ProductID); err != nil {
			logger.Warn("stats_cache_invalidate_failed", "product_id", rating.ProductID, "err", err)
		}
	}
	if a.events != nil {
		evt := events.RatingEvent{
			RatingID:  rating.ID,
			ProductID: rating.ProductID,
			AuthorID:  rating.AuthorID,
			Score:     rating.Score,
			HasReview: rating.HasReview(),
			CreatedAt: rating.CreatedAt,
		}
		if err := a.events.PublishRating(ctx, evt); err != nil {
			logger.Warn("rating_event_publish_failed", "rating_id", rating.ID, "err", err)
		}
	}
	logger.Info("rating_submitted", "rating_id", rating.ID, "product_id", rating.ProductID)
	return rating, nil
}

// ProductAverage returns the rating summary of a product, served from the
// stats cache when present. The cache generation is read before the store so
// a summary computed across a concurrent submission is never served.
func (a *App) ProductAverage(ctx context.Context, productID string) (domain.RatingSummary, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.RatingSummary{}, ErrFieldsRequired
	}
	logger := a.logger(ctx)

	cached := a.cache != nil
	var gen int64
	if cached {
		var err error
		gen, err = a.cache.ProductGeneration(ctx, productID)
		if err != nil {
			logger.Warn("stats_cache_generation_failed", "product_id", productID, "err", err)
			cached = false
		}
	}
	if cached {
		summary, ok, err := a.cache.GetProductSummary(ctx, productID, gen)
		if err != nil {
			logger.Warn("stats_cache_get_failed", "product_id", productID, "err", err)
		} else {
			a.metrics.RecordStatsCache(ok)
			if ok {
				return summary, nil
			}
		}
	}

	storeCtx, cancel := a.storeCtx(ctx)
	defer cancel()
	summary, err := a.store.ProductSummary(storeCtx, productID)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("summarize product: %w", err)
	}
	if cached {
		if err := a.cache.SetProductSummary(ctx, productID, gen, summary); err != nil {
			logger.Warn("stats_cache_set_failed", "product_id", productID, "err", err)
		}
	}
	return summary, nil
}
