package spaceweather

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData means the cache is empty, the refresh failed and the window
	// holds nothing. Consumers must show "nothing to display".
	ErrNoData = errors.New("nothing to display")

	// ErrUnknownFeed is returned for a feed name that is not configured.
	ErrUnknownFeed = errors.New("unknown feed")
)

// TransportError is a network, timeout, open circuit or non-2xx failure.
type TransportError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is a payload that could not be turned into text or parsed as
// a whole.
type DecodeError struct {
	URL     string
	Charset string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Charset != "" {
		return fmt.Sprintf("decode %s (charset %s): %v", e.URL, e.Charset, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MalformedRecordError is a single record that failed normalization.
// Its siblings are still processed.
type MalformedRecordError struct {
	Index int
	Raw   string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d %q: %v", e.Index, e.Raw, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// CacheCorruptError is a cache file that could not be decoded. It is logged
// and the cache is treated as empty.
type CacheCorruptError struct {
	Path string
	Err  error
}

func (e *CacheCorruptError) Error() string {
	return fmt.Sprintf("cache %s corrupt: %v", e.Path, e.Err)
}

func (e *CacheCorruptError) Unwrap() error { return e.Err }
