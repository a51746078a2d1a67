package domain

import "time"

// DefaultClaimWindow is how long an agent may hold a claim before the
// sweeper force-releases it.
const DefaultClaimWindow = 72 * time.Hour

// Expired reports whether a claim made at claimedAt has outlived the window
// as of now.
func Expired(claimedAt, now time.Time, window time.Duration) bool {
	return now.Sub(claimedAt) > window
}

// DaysRemaining returns the whole days left before a claim expires. The value
// goes negative once the claim has outlived the window. Pure function of its
// inputs so callers can feed an injected clock.
func DaysRemaining(claimedAt, now time.Time, window time.Duration) int {
	windowDays := int(window / (24 * time.Hour))
	elapsedDays := int(now.Sub(claimedAt) / (24 * time.Hour))
	return windowDays - elapsedDays
}

// AboutToExpire reports whether a claim has at most one whole day left.
// Already-expired claims are not "about to" expire.
func AboutToExpire(claimedAt, now time.Time, window time.Duration) bool {
	if Expired(claimedAt, now, window) {
		return false
	}
	return DaysRemaining(claimedAt, now, window) <= 1
}
