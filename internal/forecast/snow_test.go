package forecast

import (
	"errors"
	"fmt"
	"testing"
)

func precipSample(hour int, amount, kind string) string {
	ts := fmt.Sprintf("2020-12-01T%02d:00:00.000Z", hour)
	return sampleJSON(ts, map[string]string{
		"precipitation":      amount,
		"precipitation_type": kind,
	})
}

func TestAggregateSnow(t *testing.T) {
	tests := []struct {
		name    string
		samples []string
		want    SnowTotal
	}{
		{
			name:    "empty window",
			samples: nil,
			want:    SnowTotal{Accumulated: 0, Present: false},
		},
		{
			name: "snow and rain counts snow only",
			samples: []string{
				precipSample(0, "5", `"snow"`),
				precipSample(1, "3", `"rain"`),
			},
			want: SnowTotal{Accumulated: 5, Present: true},
		},
		{
			name: "rain only is not snow",
			samples: []string{
				precipSample(0, "2.5", `"rain"`),
				precipSample(1, "4", `"rain"`),
				precipSample(2, "1", `"freezing_rain"`),
			},
			want: SnowTotal{Accumulated: 0, Present: false},
		},
		{
			name: "snow typed samples with zero amount",
			samples: []string{
				precipSample(0, "0", `"snow"`),
				precipSample(1, "0", `"snow"`),
			},
			want: SnowTotal{Accumulated: 0, Present: false},
		},
		{
			name: "sums across the window",
			samples: []string{
				precipSample(0, "0.25", `"snow"`),
				precipSample(1, "0", `"none"`),
				precipSample(2, "1.5", `"snow"`),
				precipSample(3, "0.75", `"ice_pellets"`),
				precipSample(4, "2.25", `"snow"`),
			},
			want: SnowTotal{Accumulated: 4, Present: true},
		},
		{
			name: "numeric string and null amounts",
			samples: []string{
				precipSample(0, `"1.5"`, `"snow"`),
				precipSample(1, "null", `"snow"`),
			},
			want: SnowTotal{Accumulated: 1.5, Present: true},
		},
		{
			name: "non-numeric rain amount is never read",
			samples: []string{
				precipSample(0, `"n/a"`, `"rain"`),
				precipSample(1, "2", `"snow"`),
			},
			want: SnowTotal{Accumulated: 2, Present: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := mustSequence(t, tt.samples...)
			got, err := AggregateSnow(seq)
			if err != nil {
				t.Fatalf("AggregateSnow: %v", err)
			}
			if got != tt.want {
				t.Errorf("AggregateSnow() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAggregateSnow_NilSequence(t *testing.T) {
	got, err := AggregateSnow(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Accumulated != 0 || got.Present {
		t.Errorf("AggregateSnow(nil) = %+v, want zero", got)
	}
}

func TestAggregateSnow_MissingType(t *testing.T) {
	seq := mustSequence(t,
		precipSample(0, "1", `"snow"`),
		sampleJSON("2020-12-01T01:00:00Z", map[string]string{"precipitation": "1"}),
	)
	_, err := AggregateSnow(seq)
	var mf *MissingFieldError
	if !errors.As(err, &mf) {
		t.Fatalf("error = %v, want *MissingFieldError", err)
	}
	if mf.Field != "precipitation_type" || mf.Index != 1 {
		t.Errorf("MissingFieldError = %+v", mf)
	}
}

func TestAggregateSnow_BadSnowAmount(t *testing.T) {
	seq := mustSequence(t, precipSample(0, `"lots"`, `"snow"`))
	_, err := AggregateSnow(seq)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}
