package domain

import (
	"testing"
	"time"
)

func TestExpiredAroundTheWindowBoundary(t *testing.T) {
	claimedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		elapsed time.Duration
		want    bool
	}{
		{0, false},
		{71 * time.Hour, false},
		{72 * time.Hour, false},
		{73 * time.Hour, true},
		{96 * time.Hour, true},
	}

	for _, tc := range cases {
		now := claimedAt.Add(tc.elapsed)
		if got := Expired(claimedAt, now, DefaultClaimWindow); got != tc.want {
			t.Errorf("Expired at +%v = %v, want %v", tc.elapsed, got, tc.want)
		}
	}
}

func TestDaysRemaining(t *testing.T) {
	claimedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 3},
		{10 * time.Hour, 3},
		{25 * time.Hour, 2},
		{49 * time.Hour, 1},
		{71 * time.Hour, 1},
		{73 * time.Hour, 0},
		{97 * time.Hour, -1},
		{7 * 24 * time.Hour, -4},
	}

	for _, tc := range cases {
		now := claimedAt.Add(tc.elapsed)
		if got := DaysRemaining(claimedAt, now, DefaultClaimWindow); got != tc.want {
			t.Errorf("DaysRemaining at +%v = %d, want %d", tc.elapsed, got, tc.want)
		}
	}
}

func TestAboutToExpire(t *testing.T) {
	claimedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		elapsed time.Duration
		want    bool
	}{
		{10 * time.Hour, false},  // 3 days left
		{49 * time.Hour, true},   // 1 day left
		{71 * time.Hour, true},   // inside the last day
		{73 * time.Hour, false},  // already expired
		{120 * time.Hour, false}, // long expired
	}

	for _, tc := range cases {
		now := claimedAt.Add(tc.elapsed)
		if got := AboutToExpire(claimedAt, now, DefaultClaimWindow); got != tc.want {
			t.Errorf("AboutToExpire at +%v = %v, want %v", tc.elapsed, got, tc.want)
		}
	}
}
