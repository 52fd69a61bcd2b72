package forecast

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// Point is one entry of a Series.
type Point struct {
	Time  time.Time
	Value Value
}

// Series maps normalized instants to one quantity's value. Iteration follows
// the order of the samples it was built from; nothing is re-sorted.
type Series struct {
	Quantity Quantity
	points   []Point
	index    map[int64]int
}

func newSeries(q Quantity, n int) *Series {
	return &Series{
		Quantity: q,
		points:   make([]Point, 0, n),
		index:    make(map[int64]int, n),
	}
}

// put keeps the first position of a repeated instant and overwrites its value.
func (s *Series) put(t time.Time, v Value) {
	key := t.UnixNano()
	if i, ok := s.index[key]; ok {
		s.points[i].Value = v
		return
	}
	s.index[key] = len(s.points)
	s.points = append(s.points, Point{Time: t, Value: v})
}

func (s *Series) Len() int { return len(s.points) }

// Points returns a copy of the series entries in order.
func (s *Series) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// All iterates the series in order.
func (s *Series) All() iter.Seq2[time.Time, Value] {
	return func(yield func(time.Time, Value) bool) {
		for _, p := range s.points {
			if !yield(p.Time, p.Value) {
				return
			}
		}
	}
}

// At looks up the value recorded for instant t, in any zone.
func (s *Series) At(t time.Time) (Value, bool) {
	i, ok := s.index[t.UnixNano()]
	if !ok {
		return Value{}, false
	}
	return s.points[i].Value, true
}

// Extract builds the series for q from seq, normalizing each sample's
// observation_time into zone (time.Local when nil).
func Extract(seq Sequence, q Quantity, zone *time.Location) (*Series, error) {
	s := newSeries(q, len(seq))
	for i, sample := range seq {
		t, err := sample.ObservationTime(zone)
		if err != nil {
			var mf *MissingFieldError
			if errors.As(err, &mf) {
				return nil, &MissingFieldError{Field: mf.Field, Index: i}
			}
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		v, ok := sample.Value(q)
		if !ok {
			return nil, &MissingFieldError{Field: string(q), Index: i, Available: sample.Fields()}
		}
		s.put(t, v)
	}
	return s, nil
}

// ExtractSample builds a one-entry series from a single sample, as returned by
// the realtime endpoint.
func ExtractSample(sample Sample, q Quantity, zone *time.Location) (*Series, error) {
	return Extract(Sequence{sample}, q, zone)
}
