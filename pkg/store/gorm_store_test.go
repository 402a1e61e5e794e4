package store

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestTranslateWriteError(t *testing.T) {
	other := errors.New("connection reset")
	tests := []struct {
		name         string
		in           error
		wantConflict bool
		wantSame     bool
	}{
		{name: "nil", in: nil, wantSame: true},
		{name: "duplicate key", in: gorm.ErrDuplicatedKey, wantConflict: true},
		{name: "wrapped duplicate key", in: fmt.Errorf("insert rating: %w", gorm.ErrDuplicatedKey), wantConflict: true},
		{name: "other error", in: other, wantSame: true},
		{name: "record not found", in: gorm.ErrRecordNotFound, wantSame: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := translateWriteError(tc.in)
			if errors.Is(got, ErrConflict) != tc.wantConflict {
				t.Fatalf("errors.Is(%v, ErrConflict) = %v, want %v", got, !tc.wantConflict, tc.wantConflict)
			}
			if tc.wantSame && got != tc.in {
				t.Fatalf("expected %v to pass through, got %v", tc.in, got)
			}
		})
	}
}
