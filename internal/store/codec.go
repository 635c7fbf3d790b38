package store

import (
	json "github.com/goccy/go-json"

	"github.com/i474232898/sunflux/internal/spaceweather"
)

// Codec turns a cached value into bytes and back.
type Codec[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// SequenceCodec stores a record history as a JSON array.
type SequenceCodec struct{}

func (SequenceCodec) Marshal(seq spaceweather.Sequence) ([]byte, error) {
	if seq == nil {
		seq = spaceweather.Sequence{}
	}
	return json.Marshal(seq)
}

func (SequenceCodec) Unmarshal(data []byte) (spaceweather.Sequence, error) {
	var seq spaceweather.Sequence
	if err := json.Unmarshal(data, &seq); err != nil {
		return nil, err
	}
	for i := range seq {
		seq[i].Time = seq[i].Time.UTC()
	}
	return seq, nil
}

// RawCodec stores bytes as they are (station images).
type RawCodec struct{}

func (RawCodec) Marshal(b []byte) ([]byte, error) { return b, nil }

func (RawCodec) Unmarshal(data []byte) ([]byte, error) { return data, nil }
