package spaceweather

import (
	"sort"
	"time"
)

// Merge folds incoming records into cached history.
// Records are keyed by Time; incoming wins on a tie since it is assumed
// newer. The result is sorted ascending and, when limit > 0, truncated to
// the most recent limit entries. Neither input is modified.
func Merge(cached, incoming Sequence, limit int) Sequence {
	byTime := make(map[int64]Record, len(cached)+len(incoming))
	for _, r := range cached {
		byTime[r.Time.UnixNano()] = r
	}
	for _, r := range incoming {
		byTime[r.Time.UnixNano()] = r
	}

	merged := make(Sequence, 0, len(byTime))
	for _, r := range byTime {
		merged = append(merged, r.clone())
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged
}

// TrimAge drops records older than now-maxAge. A non-positive maxAge keeps
// everything. seq must already be sorted.
func TrimAge(seq Sequence, maxAge time.Duration, now time.Time) Sequence {
	if maxAge <= 0 {
		return seq
	}
	cutoff := now.Add(-maxAge)
	i := sort.Search(len(seq), func(i int) bool {
		return !seq[i].Time.Before(cutoff)
	})
	return seq[i:]
}

// Retention bounds how much history a feed keeps.
type Retention struct {
	MaxEntries int           // 0 = unlimited
	MaxAge     time.Duration // 0 = unlimited
}

// MergeFunc returns the merge step of a record cache with this retention.
func (r Retention) MergeFunc(now func() time.Time) func(cached, fresh Sequence) Sequence {
	if now == nil {
		now = time.Now
	}
	return func(cached, fresh Sequence) Sequence {
		return TrimAge(Merge(cached, fresh, r.MaxEntries), r.MaxAge, now())
	}
}

// ReplaceImage is the merge step of image caches: the new image replaces
// the old one, unless the download came back empty.
func ReplaceImage(cached, fresh []byte) []byte {
	if len(fresh) == 0 {
		return cached
	}
	return fresh
}
