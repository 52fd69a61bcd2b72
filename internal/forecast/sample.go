package forecast

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// Sample is one provider record for a single instant. It keeps the JSON
// object exactly as received; fields are read through Value.
type Sample struct {
	raw []byte
}

// NewSample wraps a raw JSON object. The bytes are copied so the sample
// cannot change after it is created.
func NewSample(raw []byte) (Sample, error) {
	if !gjson.ValidBytes(raw) {
		return Sample{}, &ParseError{What: "payload", Err: errors.New("invalid json")}
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return Sample{}, &ParseError{What: "payload", Err: errors.New("sample is not a json object")}
	}
	return Sample{raw: bytes.Clone(raw)}, nil
}

// field looks a top-level member up by exact name. gjson paths treat '.',
// '*' and '?' specially, so the object is walked instead.
func (s Sample) field(name string) gjson.Result {
	var found gjson.Result
	gjson.ParseBytes(s.raw).ForEach(func(key, value gjson.Result) bool {
		if key.Str == name {
			found = value
			return false
		}
		return true
	})
	return found
}

// Value returns field.value. ok is false when the field, or its "value"
// member, is absent.
func (s Sample) Value(q Quantity) (Value, bool) {
	f := s.field(string(q))
	if !f.Exists() || !f.IsObject() {
		return Value{}, false
	}
	v := f.Get("value")
	if !v.Exists() {
		return Value{}, false
	}
	return Value{res: v}, true
}

// ObservationTime normalizes the sample's observation_time into zone.
func (s Sample) ObservationTime(zone *time.Location) (time.Time, error) {
	v, ok := s.Value(observationTime)
	if !ok {
		return time.Time{}, &MissingFieldError{Field: observationTime}
	}
	return ParseTime(v.String(), zone)
}

// Fields lists the sample's top-level field names in payload order.
func (s Sample) Fields() []string {
	var names []string
	gjson.ParseBytes(s.raw).ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.Str)
		return true
	})
	return names
}

// Sequence is an ordered run of samples, in the order the provider sent them.
type Sequence []Sample

// DecodeSequence parses a provider response body. A JSON array yields one
// sample per element; a single object (the realtime endpoint) yields a
// one-sample sequence.
func DecodeSequence(body []byte) (Sequence, error) {
	if !gjson.ValidBytes(body) {
		return nil, &ParseError{What: "payload", Input: snippet(body), Err: errors.New("invalid json")}
	}
	root := gjson.ParseBytes(body)
	switch {
	case root.IsObject():
		s, err := NewSample([]byte(root.Raw))
		if err != nil {
			return nil, err
		}
		return Sequence{s}, nil
	case root.IsArray():
		elems := root.Array()
		seq := make(Sequence, 0, len(elems))
		for i, elem := range elems {
			if !elem.IsObject() {
				return nil, &ParseError{What: "payload", Input: snippet([]byte(elem.Raw)), Err: fmt.Errorf("element %d is not an object", i)}
			}
			seq = append(seq, Sample{raw: []byte(elem.Raw)})
		}
		return seq, nil
	}
	return nil, &ParseError{What: "payload", Input: snippet(body), Err: errors.New("expected object or array")}
}

func snippet(b []byte) string {
	const max = 64
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Value is a single reading. The provider sends numbers for measurements,
// strings for enumerations like precipitation_type, and occasionally null.
type Value struct {
	res gjson.Result
}

// IsNull reports an explicit JSON null.
func (v Value) IsNull() bool { return v.res.Type == gjson.Null }

// Float returns the numeric reading. Numeric strings are accepted and null
// reads as zero.
func (v Value) Float() (float64, error) {
	switch v.res.Type {
	case gjson.Number:
		return v.res.Num, nil
	case gjson.Null:
		return 0, nil
	case gjson.String:
		f, err := strconv.ParseFloat(v.res.Str, 64)
		if err != nil {
			return 0, &ParseError{What: "value", Input: v.res.Str, Err: err}
		}
		return f, nil
	}
	return 0, &ParseError{What: "value", Input: v.res.Raw, Err: errors.New("not a number")}
}

// String returns the reading as text: strings unquoted, null as "".
func (v Value) String() string {
	switch v.res.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.res.Str
	}
	return v.res.Raw
}
