package spaceweather

import "time"

// IsStale reports whether data last written at lastModified needs a refresh.
// A zero lastModified means the age is unknown (no cache yet) and is always
// stale. Negative elapsed time from clock skew is never stale.
func IsStale(lastModified time.Time, ttl time.Duration, now time.Time) bool {
	if lastModified.IsZero() {
		return true
	}
	elapsed := now.Sub(lastModified)
	return elapsed > 0 && elapsed > ttl
}

// Staleness pairs a time-to-live with the clock it is measured against.
type Staleness struct {
	TTL time.Duration
	Now func() time.Time // defaults to time.Now
}

func (s Staleness) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Stale applies IsStale with the policy's TTL and clock.
func (s Staleness) Stale(lastModified time.Time) bool {
	return IsStale(lastModified, s.TTL, s.now())
}
