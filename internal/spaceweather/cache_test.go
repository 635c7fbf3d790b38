package spaceweather_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/sunflux/internal/logging"
	sw "github.com/i474232898/sunflux/internal/spaceweather"
	"github.com/i474232898/sunflux/internal/store"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func rec(minutes int, v float64) sw.Record {
	return sw.Record{Time: base.Add(time.Duration(minutes) * time.Minute), Values: []float64{v}}
}

type fakeSource struct {
	name  string
	seq   sw.Sequence
	err   error
	calls int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) (sw.Sequence, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return append(sw.Sequence(nil), f.seq...), nil
}

func newRecordCache(src sw.Source[sw.Sequence], st sw.Store[sw.Sequence], ttl time.Duration, now func() time.Time) *sw.Cache[sw.Sequence] {
	return sw.NewCache[sw.Sequence](src, st,
		sw.Staleness{TTL: ttl, Now: now},
		sw.Retention{}.MergeFunc(now),
		sw.WithLogger[sw.Sequence](logging.Discard()))
}

func values(seq sw.Sequence) []float64 {
	out := make([]float64, len(seq))
	for i, r := range seq {
		out[i] = r.Value(0)
	}
	return out
}

func TestCacheFirstRunFetches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kp.json")
	src := &fakeSource{name: "kp", seq: sw.Sequence{rec(30, 3), rec(0, 1)}}
	c := newRecordCache(src, store.NewFile[sw.Sequence](path, store.SequenceCodec{}), time.Hour, time.Now)

	got := c.Get(context.Background())

	if src.calls != 1 {
		t.Fatalf("expected one fetch, got %d", src.calls)
	}
	if len(got) != 2 || got[0].Value(0) != 1 || got[1].Value(0) != 3 {
		t.Fatalf("unexpected sequence %v", values(got))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
}

func TestCacheFreshDoesNotFetch(t *testing.T) {
	now := base
	clock := func() time.Time { return now }
	mem := store.NewMemory[sw.Sequence](store.SequenceCodec{}).WithClock(clock)
	if err := mem.Save(sw.Sequence{rec(0, 1)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	src := &fakeSource{name: "kp", seq: sw.Sequence{rec(15, 2)}}
	c := newRecordCache(src, mem, time.Hour, clock)

	now = base.Add(59 * time.Minute)
	if got := c.Get(context.Background()); len(got) != 1 {
		t.Fatalf("expected cached sequence, got %v", values(got))
	}
	if src.calls != 0 {
		t.Fatalf("fresh cache must not fetch, got %d calls", src.calls)
	}

	now = base.Add(61 * time.Minute)
	got := c.Get(context.Background())
	if src.calls != 1 {
		t.Fatalf("stale cache must fetch once, got %d calls", src.calls)
	}
	if len(got) != 2 {
		t.Fatalf("expected merged sequence, got %v", values(got))
	}
}

func TestCacheRefreshMergesWithHistory(t *testing.T) {
	mem := store.NewMemory[sw.Sequence](store.SequenceCodec{})
	if err := mem.Save(sw.Sequence{rec(0, 3), rec(15, 3), rec(30, 3)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	src := &fakeSource{name: "kp", seq: sw.Sequence{rec(45, 4), rec(15, 5)}}
	c := newRecordCache(src, mem, time.Hour, time.Now)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got := values(mem.Load())
	want := []float64{3, 5, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCacheTransportErrorKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssn.json")
	fs := store.NewFile[sw.Sequence](path, store.SequenceCodec{})
	prior := sw.Sequence{rec(0, 3), rec(15, 3)}
	if err := fs.Save(prior); err != nil {
		t.Fatalf("save: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	src := &fakeSource{name: "ssn", err: &sw.TransportError{URL: "http://example.invalid", Err: errors.New("timeout")}}
	c := newRecordCache(src, fs, time.Hour, time.Now)

	got := c.Get(context.Background())
	if src.calls != 1 {
		t.Fatalf("expected a refresh attempt, got %d", src.calls)
	}
	if len(got) != 2 || !got[0].Time.Equal(prior[0].Time) || !got[1].Time.Equal(prior[1].Time) {
		t.Fatalf("expected prior sequence, got %v", values(got))
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("cache file changed after a failed refresh")
	}

	err = c.Refresh(context.Background())
	var te *sw.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestCacheStatusAccessors(t *testing.T) {
	mem := store.NewMemory[sw.Sequence](store.SequenceCodec{})
	c := newRecordCache(&fakeSource{name: "alerts"}, mem, 4*time.Hour, time.Now)

	if c.Name() != "alerts" || c.TTL() != 4*time.Hour {
		t.Fatalf("unexpected name/ttl %s %v", c.Name(), c.TTL())
	}
	if !c.Stale() || !c.LastModified().IsZero() {
		t.Fatalf("an empty cache must be stale with unknown age")
	}
}
