package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jeno-bellido/ich-backend/pkg/domain"
)

func TestRedisStatsCacheRoundTripAndInvalidate(t *testing.T) {
	redis := miniredis.RunT(t)
	c := NewRedisStatsCache(redis.Addr(), "", time.Minute)
	ctx := context.Background()

	gen, err := c.ProductGeneration(ctx, "p1")
	if err != nil || gen != 0 {
		t.Fatalf("initial generation = %d, err=%v", gen, err)
	}
	if _, ok, err := c.GetProductSummary(ctx, "p1", gen); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	avg := 3.5
	if err := c.SetProductSummary(ctx, "p1", gen, domain.RatingSummary{AverageRating: &avg, NumberOfRatings: 2}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.GetProductSummary(ctx, "p1", gen)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.AverageRating == nil || *got.AverageRating != 3.5 || got.NumberOfRatings != 2 {
		t.Fatalf("unexpected summary: %+v", got)
	}

	if err := c.InvalidateProduct(ctx, "p1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	next, err := c.ProductGeneration(ctx, "p1")
	if err != nil || next != gen+1 {
		t.Fatalf("generation after invalidate = %d, err=%v; want %d", next, err, gen+1)
	}
	if _, ok, err := c.GetProductSummary(ctx, "p1", next); err != nil || ok {
		t.Fatalf("expected miss after invalidate, ok=%v err=%v", ok, err)
	}
}

func TestRedisStatsCacheLateWriteLandsOnRetiredGeneration(t *testing.T) {
	redis := miniredis.RunT(t)
	c := NewRedisStatsCache(redis.Addr(), "", time.Minute)
	ctx := context.Background()

	readGen, err := c.ProductGeneration(ctx, "p4")
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	if err := c.InvalidateProduct(ctx, "p4"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := c.SetProductSummary(ctx, "p4", readGen, domain.RatingSummary{}); err != nil {
		t.Fatalf("late set: %v", err)
	}

	current, err := c.ProductGeneration(ctx, "p4")
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	if _, ok, err := c.GetProductSummary(ctx, "p4", current); err != nil || ok {
		t.Fatalf("late summary visible under current generation, ok=%v err=%v", ok, err)
	}
	if ttl := redis.TTL("ich:stats:product:p4:gen"); ttl != 0 {
		t.Fatalf("generation key must not expire, ttl=%v", ttl)
	}
}

func TestRedisStatsCacheKeepsNullAverage(t *testing.T) {
	redis := miniredis.RunT(t)
	c := NewRedisStatsCache(redis.Addr(), "", time.Minute)
	ctx := context.Background()

	if err := c.SetProductSummary(ctx, "p2", 0, domain.RatingSummary{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.GetProductSummary(ctx, "p2", 0)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.AverageRating != nil || got.NumberOfRatings != 0 {
		t.Fatalf("expected empty summary, got %+v", got)
	}
}

func TestRedisStatsCacheExpires(t *testing.T) {
	redis := miniredis.RunT(t)
	c := NewRedisStatsCache(redis.Addr(), "", time.Minute)
	ctx := context.Background()

	if err := c.SetProductSummary(ctx, "p3", 0, domain.RatingSummary{NumberOfRatings: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	redis.FastForward(2 * time.Minute)
	if _, ok, err := c.GetProductSummary(ctx, "p3", 0); err != nil || ok {
		t.Fatalf("expected expired entry, ok=%v err=%v", ok, err)
	}
}
