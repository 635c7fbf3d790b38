package spaceweather

import (
	"context"
	"time"
)

// Source abstracts one remote feed (e.g. NOAA K-index forecast, SIDC sunspot number).
// Fetch performs a single attempt; retrying is left to the next scheduled run.
type Source[T any] interface {
	Name() string
	Fetch(ctx context.Context) (T, error)
}

// Store is the contract the file store (and the in-memory store) must satisfy.
//
// Load never fails: a missing, empty or undecodable backing yields the zero
// value of T. ModTime returns the zero time when the backing does not exist.
type Store[T any] interface {
	Load() T
	Save(v T) error
	ModTime() time.Time
}
