package forecast

import (
	"fmt"
	"strings"
)

// Horizon is one of the three forecast windows the provider serves.
type Horizon int

const (
	Now         Horizon = iota // instantaneous observation
	ShortRange                 // 5-minute nowcast, 360 minutes out
	MediumRange                // hourly forecast, 96 hours out

	NumHorizons = 3
)

// Horizons lists every horizon in fetch order.
var Horizons = []Horizon{Now, ShortRange, MediumRange}

func (h Horizon) String() string {
	switch h {
	case Now:
		return "now"
	case ShortRange:
		return "short"
	case MediumRange:
		return "medium"
	default:
		return fmt.Sprintf("horizon(%d)", int(h))
	}
}

// ParseHorizon accepts the canonical names plus endpoint and window aliases
// ("realtime", "360min", "96hr").
func ParseHorizon(s string) (Horizon, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "now", "realtime":
		return Now, nil
	case "short", "nowcast", "360min":
		return ShortRange, nil
	case "medium", "hourly", "96hr":
		return MediumRange, nil
	}
	return 0, fmt.Errorf("unknown horizon %q", s)
}
