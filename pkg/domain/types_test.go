package domain

import "testing"

func TestSummarizeAverage(t *testing.T) {
	got := Summarize([]Rating{{Score: 5}, {Score: 4}, {Score: 3}})
	if got.NumberOfRatings != 3 {
		t.Fatalf("numberOfRatings = %d, want 3", got.NumberOfRatings)
	}
	if got.AverageRating == nil || *got.AverageRating != 4 {
		t.Fatalf("averageRating = %v, want 4", got.AverageRating)
	}
}

func TestSummarizeNoRatingsLeavesAverageUnset(t *testing.T) {
	got := Summarize(nil)
	if got.NumberOfRatings != 0 {
		t.Fatalf("numberOfRatings = %d, want 0", got.NumberOfRatings)
	}
	if got.AverageRating != nil {
		t.Fatalf("expected nil average, got %v", *got.AverageRating)
	}
}

func TestCountUserStatsSkipsEmptyReviews(t *testing.T) {
	got := CountUserStats([]Rating{
		{Score: 5, Review: "great"},
		{Score: 2},
		{Score: 4, Review: "ok"},
	})
	if got.NumRatings != 3 || got.NumReviews != 2 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestValidScore(t *testing.T) {
	tests := []struct {
		score int
		want  bool
	}{
		{0, false},
		{1, true},
		{3, true},
		{5, true},
		{6, false},
		{-1, false},
	}
	for _, tc := range tests {
		if got := ValidScore(tc.score); got != tc.want {
			t.Fatalf("ValidScore(%d) = %v, want %v", tc.score, got, tc.want)
		}
	}
}
