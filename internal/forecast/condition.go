package forecast

import "strings"

// Condition is a broad weather category derived from the provider's
// weather_code.
type Condition string

const (
	ConditionClear        Condition = "clear"
	ConditionPartlyCloudy Condition = "partly_cloudy"
	ConditionCloudy       Condition = "cloudy"
	ConditionFog          Condition = "fog"
	ConditionRain         Condition = "rain"
	ConditionFreezing     Condition = "freezing"
	ConditionSnow         Condition = "snow"
	ConditionStorm        Condition = "storm"
	ConditionUnknown      Condition = "unknown"
)

var codeDescriptions = map[string]string{
	"freezing_rain_heavy": "Heavy freezing rain",
	"freezing_rain":       "Freezing rain",
	"freezing_rain_light": "Light freezing rain",
	"freezing_drizzle":    "Freezing drizzle",
	"ice_pellets_heavy":   "Heavy ice pellets",
	"ice_pellets":         "Ice pellets",
	"ice_pellets_light":   "Light ice pellets",
	"snow_heavy":          "Heavy snow",
	"snow":                "Snow",
	"snow_light":          "Light snow",
	"flurries":            "Flurries",
	"tstorm":              "Thunderstorm",
	"rain_heavy":          "Heavy rain",
	"rain":                "Rain",
	"rain_light":          "Light rain",
	"drizzle":             "Drizzle",
	"fog_light":           "Light fog",
	"fog":                 "Fog",
	"cloudy":              "Cloudy",
	"mostly_cloudy":       "Mostly cloudy",
	"partly_cloudy":       "Partly cloudy",
	"mostly_clear":        "Mostly clear",
	"clear":               "Clear",
}

// ConditionFromCode categorizes a weather_code value. Unrecognized codes map
// to ConditionUnknown.
func ConditionFromCode(code string) Condition {
	code = strings.ToLower(strings.TrimSpace(code))
	if _, ok := codeDescriptions[code]; !ok {
		return ConditionUnknown
	}

	// Frozen precipitation wins over rain so freezing_rain isn't "rain".
	switch {
	case strings.HasPrefix(code, "freezing_"), strings.HasPrefix(code, "ice_pellets"):
		return ConditionFreezing
	case strings.HasPrefix(code, "snow"), code == "flurries":
		return ConditionSnow
	case code == "tstorm":
		return ConditionStorm
	case strings.HasPrefix(code, "rain"), code == "drizzle":
		return ConditionRain
	case strings.HasPrefix(code, "fog"):
		return ConditionFog
	case code == "cloudy", code == "mostly_cloudy":
		return ConditionCloudy
	case code == "partly_cloudy":
		return ConditionPartlyCloudy
	}
	return ConditionClear
}

// DescribeCode returns a display string for a weather_code, falling back to
// the code itself.
func DescribeCode(code string) string {
	if d, ok := codeDescriptions[strings.ToLower(strings.TrimSpace(code))]; ok {
		return d
	}
	return code
}
