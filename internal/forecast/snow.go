package forecast

import "fmt"

const snowType = "snow"

// SnowTotal is the snowfall accumulated across a forecast window.
type SnowTotal struct {
	Accumulated float64 // mm
	Present     bool
}

// AggregateSnow sums precipitation over the samples whose precipitation_type
// is "snow". Present is derived from the sum, never from how many samples
// matched, so a window of rain alone reports no snow.
func AggregateSnow(seq Sequence) (SnowTotal, error) {
	var total float64
	for i, sample := range seq {
		kind, ok := sample.Value(PrecipitationType)
		if !ok {
			return SnowTotal{}, &MissingFieldError{Field: string(PrecipitationType), Index: i}
		}
		if kind.String() != snowType {
			continue
		}
		amount, ok := sample.Value(Precipitation)
		if !ok {
			return SnowTotal{}, &MissingFieldError{Field: string(Precipitation), Index: i}
		}
		mm, err := amount.Float()
		if err != nil {
			return SnowTotal{}, fmt.Errorf("sample %d: %w", i, err)
		}
		total += mm
	}
	return SnowTotal{Accumulated: total, Present: total > 0}, nil
}
