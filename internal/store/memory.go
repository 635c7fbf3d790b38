package store

import (
	"sync"
	"time"
)

// Memory is a concurrency-safe in-memory store.
// It keeps the encoded form, so every Load returns a fresh copy and the
// value round-trips exactly like it would through a File.
type Memory[T any] struct {
	mu sync.RWMutex

	codec   Codec[T]
	data    []byte
	written time.Time
	now     func() time.Time
}

// NewMemory creates an empty Memory store.
func NewMemory[T any](codec Codec[T]) *Memory[T] {
	return &Memory[T]{codec: codec, now: time.Now}
}

// WithClock sets the clock used to stamp writes.
func (m *Memory[T]) WithClock(now func() time.Time) *Memory[T] {
	m.now = now
	return m
}

// Load decodes the last saved value; the zero value when nothing was saved
// or decoding fails.
func (m *Memory[T]) Load() T {
	m.mu.RLock()
	data := append([]byte(nil), m.data...)
	m.mu.RUnlock()

	var zero T
	if len(data) == 0 {
		return zero
	}
	v, err := m.codec.Unmarshal(data)
	if err != nil {
		return zero
	}
	return v
}

// Save replaces the stored value.
func (m *Memory[T]) Save(v T) error {
	data, err := m.codec.Marshal(v)
	if err != nil {
		return err
	}
	buf := append([]byte(nil), data...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = buf
	m.written = m.now()
	return nil
}

// ModTime returns the time of the last Save, zero if none.
func (m *Memory[T]) ModTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.written
}
