package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/i474232898/sunflux/internal/spaceweather"
)

func sampleSequence() spaceweather.Sequence {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return spaceweather.Sequence{
		{Time: base, Values: []float64{2.33}, Kind: spaceweather.ProvenanceObserved},
		{Time: base.Add(3 * time.Hour), Values: []float64{4}, Kind: spaceweather.ProvenanceEstimated, Label: "G1"},
		{Time: base.Add(6 * time.Hour), Values: []float64{1.67}, Kind: spaceweather.ProvenancePredicted, Text: "quiet"},
	}
}

func equalSequences(t *testing.T, got, want spaceweather.Sequence) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		g, w := got[i], want[i]
		if !g.Time.Equal(w.Time) || g.Kind != w.Kind || g.Label != w.Label || g.Text != w.Text {
			t.Fatalf("record %d: got %+v, want %+v", i, g, w)
		}
		if len(g.Values) != len(w.Values) {
			t.Fatalf("record %d: got values %v, want %v", i, g.Values, w.Values)
		}
		for j := range w.Values {
			if g.Values[j] != w.Values[j] {
				t.Fatalf("record %d: got values %v, want %v", i, g.Values, w.Values)
			}
		}
	}
}

func TestFileLoadMissingIsEmpty(t *testing.T) {
	f := NewFile[spaceweather.Sequence](filepath.Join(t.TempDir(), "nope.json"), SequenceCodec{})

	if got := f.Load(); len(got) != 0 {
		t.Fatalf("expected empty sequence, got %d records", len(got))
	}
	if !f.ModTime().IsZero() {
		t.Fatalf("expected zero mod time for a missing file")
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "kp.json")
	f := NewFile[spaceweather.Sequence](path, SequenceCodec{})

	want := sampleSequence()
	if err := f.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	equalSequences(t, f.Load(), want)

	if f.ModTime().IsZero() {
		t.Fatalf("expected a mod time after save")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the cache file, found %d entries", len(entries))
	}
}

func TestFileSaveOverwrites(t *testing.T) {
	f := NewFile[spaceweather.Sequence](filepath.Join(t.TempDir(), "ssn.json"), SequenceCodec{})

	if err := f.Save(sampleSequence()); err != nil {
		t.Fatalf("save: %v", err)
	}
	short := sampleSequence()[:1]
	if err := f.Save(short); err != nil {
		t.Fatalf("save: %v", err)
	}
	equalSequences(t, f.Load(), short)
}

type failingCodec struct{ SequenceCodec }

func (failingCodec) Marshal(spaceweather.Sequence) ([]byte, error) {
	return nil, errors.New("encoder broke")
}

func noTempFiles(t *testing.T, dir string) {
	t.Helper()
	left, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("temp files left behind: %v", left)
	}
}

func TestFileFailedEncodeKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kp.json")
	if err := NewFile[spaceweather.Sequence](path, SequenceCodec{}).Save(sampleSequence()); err != nil {
		t.Fatalf("save: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	broken := NewFile[spaceweather.Sequence](path, failingCodec{})
	if err := broken.Save(sampleSequence()[:1]); err == nil {
		t.Fatalf("expected an encode error")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("cache file changed after a failed save")
	}
	equalSequences(t, broken.Load(), sampleSequence())
	noTempFiles(t, dir)
}

func TestFileFailedReplaceLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kp.json")

	// A non-empty directory cannot be renamed over.
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	inside := filepath.Join(path, "keep")
	if err := os.WriteFile(inside, []byte("keep"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := NewFile[spaceweather.Sequence](path, SequenceCodec{})
	if err := f.Save(sampleSequence()); err == nil {
		t.Fatalf("expected the rename to fail")
	}

	data, err := os.ReadFile(inside)
	if err != nil || string(data) != "keep" {
		t.Fatalf("directory contents changed: %q, %v", data, err)
	}
	noTempFiles(t, dir)
}

func TestFileCorruptOrEmptyIsEmpty(t *testing.T) {
	dir := t.TempDir()

	for name, content := range map[string]string{
		"empty.json":   "",
		"corrupt.json": "{not json",
		"wrong.json":   `{"time": 1}`,
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		f := NewFile[spaceweather.Sequence](path, SequenceCodec{})
		if got := f.Load(); len(got) != 0 {
			t.Errorf("%s: expected empty sequence, got %d records", name, len(got))
		}
	}
}

func TestFileRawBytes(t *testing.T) {
	f := NewFile[[]byte](filepath.Join(t.TempDir(), "ki.png"), RawCodec{})

	img := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}
	if err := f.Save(img); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := f.Load(); !bytes.Equal(got, img) {
		t.Fatalf("got %v, want %v", got, img)
	}
}

func TestMemoryCopyOnRead(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory[spaceweather.Sequence](SequenceCodec{}).WithClock(func() time.Time { return now })

	if !m.ModTime().IsZero() {
		t.Fatalf("expected zero mod time before first save")
	}
	if got := m.Load(); len(got) != 0 {
		t.Fatalf("expected empty load before first save")
	}

	want := sampleSequence()
	if err := m.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !m.ModTime().Equal(now) {
		t.Fatalf("expected mod time %v, got %v", now, m.ModTime())
	}

	first := m.Load()
	first[0].Values[0] = 99
	first[1].Label = "changed"

	equalSequences(t, m.Load(), want)
}

func TestMemoryRawBytesAreCopied(t *testing.T) {
	m := NewMemory[[]byte](RawCodec{})
	if err := m.Save([]byte("abc")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got := m.Load()
	got[0] = 'x'
	if string(m.Load()) != "abc" {
		t.Fatalf("stored bytes were mutated through a loaded copy")
	}
}
