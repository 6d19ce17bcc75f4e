package numbering

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/restamate/pos-server/internal/app/storage/memory"
)

func TestSequentialSameDay(t *testing.T) {
	svc := New(memory.New(), nil)

	first := svc.Next(context.Background())
	second := svc.Next(context.Background())

	if first != 1 {
		t.Fatalf("first number = %d, want 1", first)
	}
	if second != first+1 {
		t.Fatalf("second number = %d, want %d", second, first+1)
	}
}

func TestResetsOnNewDay(t *testing.T) {
	day := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	svc := New(memory.New(), nil, WithClock(func() time.Time { return day }))

	svc.Next(context.Background())
	svc.Next(context.Background())
	if n := svc.Next(context.Background()); n != 3 {
		t.Fatalf("third number = %d, want 3", n)
	}

	day = day.Add(24 * time.Hour)
	if n := svc.Next(context.Background()); n != 1 {
		t.Fatalf("first number of new day = %d, want 1", n)
	}
	if n := svc.Next(context.Background()); n != 2 {
		t.Fatalf("second number of new day = %d, want 2", n)
	}
}

type failingCounter struct{}

func (failingCounter) NextOrderNumber(context.Context, string) (int, error) {
	return 0, errors.New("store down")
}

func TestFallsBackToMemoryWhenStoreFails(t *testing.T) {
	svc := New(failingCounter{}, nil)

	// Numbering must not fail the order when the store is unavailable.
	if n := svc.Next(context.Background()); n != 1 {
		t.Fatalf("fallback first number = %d, want 1", n)
	}
	if n := svc.Next(context.Background()); n != 2 {
		t.Fatalf("fallback second number = %d, want 2", n)
	}
}

func TestFallbackResetsOnNewDay(t *testing.T) {
	day := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	svc := New(failingCounter{}, nil, WithClock(func() time.Time { return day }))

	svc.Next(context.Background())
	day = day.Add(2 * time.Minute)
	if n := svc.Next(context.Background()); n != 1 {
		t.Fatalf("fallback number after rollover = %d, want 1", n)
	}
}
