package spaceweather

import "time"

// Select returns the records with start < Time < end, in order.
// It returns an empty sequence when start >= end.
func Select(seq Sequence, start, end time.Time) Sequence {
	return Window{Start: start, End: end}.Select(seq)
}

// Window is a time range used to pick the part of a history one consumer
// needs. Bounds are exclusive unless Inclusive is set.
type Window struct {
	Start     time.Time
	End       time.Time
	Inclusive bool
}

// Empty reports whether no instant can fall inside the window.
func (w Window) Empty() bool {
	if w.Inclusive {
		return w.Start.After(w.End)
	}
	return !w.Start.Before(w.End)
}

func (w Window) contains(t time.Time) bool {
	if w.Inclusive {
		return !t.Before(w.Start) && !t.After(w.End)
	}
	return t.After(w.Start) && t.Before(w.End)
}

// Select copies the records inside the window. seq must be sorted.
func (w Window) Select(seq Sequence) Sequence {
	out := Sequence{}
	if w.Empty() {
		return out
	}
	for _, r := range seq {
		if w.contains(r.Time) {
			out = append(out, r.clone())
		}
	}
	return out
}

// View is the default window of a feed, relative to the time of the request.
type View struct {
	Lookback  time.Duration
	Lookahead time.Duration
	Inclusive bool
}

// At anchors the view on now.
func (v View) At(now time.Time) Window {
	return Window{
		Start:     now.Add(-v.Lookback),
		End:       now.Add(v.Lookahead),
		Inclusive: v.Inclusive,
	}
}
