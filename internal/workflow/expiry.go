package workflow

import "time"

// IsExpired reports whether an invitation or token expiring at expiresAt is
// no longer valid at now. The deadline itself is still valid; a zero expiry
// never expires.
func IsExpired(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return expiresAt.Before(now)
}
