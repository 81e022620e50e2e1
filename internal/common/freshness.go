// Package common provides shared utilities for Sift
package common

import "time"

// IsFreshAt reports whether an entry updated at updated is still within ttl
// at now. An entry is fresh while now - updated < ttl.
func IsFreshAt(updated time.Time, ttl time.Duration, now time.Time) bool {
	if updated.IsZero() || ttl <= 0 {
		return false
	}
	return now.Sub(updated) < ttl
}
