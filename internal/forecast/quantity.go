package forecast

import (
	"errors"
	"strings"
)

// Quantity names a field in a provider sample. The constant values are the
// provider's own field names, so any other field in the payload can be used
// as Quantity("name") directly.
type Quantity string

const (
	Temperature              Quantity = "temp"
	FeelsLike                Quantity = "feels_like"
	Humidity                 Quantity = "humidity"
	Precipitation            Quantity = "precipitation"
	PrecipitationType        Quantity = "precipitation_type"
	PrecipitationProbability Quantity = "precipitation_probability"
	WindSpeed                Quantity = "wind_speed"
	WindDirection            Quantity = "wind_direction"
	CloudCover               Quantity = "cloud_cover"
	CloudBase                Quantity = "cloud_base"
	Visibility               Quantity = "visibility"
	WeatherCode              Quantity = "weather_code"
	Sunrise                  Quantity = "sunrise"
	Sunset                   Quantity = "sunset"
)

const observationTime = "observation_time"

// Quantities lists the declared quantities.
var Quantities = []Quantity{
	Temperature, FeelsLike, Humidity, Precipitation, PrecipitationType,
	PrecipitationProbability, WindSpeed, WindDirection, CloudCover, CloudBase,
	Visibility, WeatherCode, Sunrise, Sunset,
}

// ParseQuantity maps a user-supplied name to a Quantity. "temperature" is
// accepted for the provider's "temp"; unknown names pass through untouched.
func ParseQuantity(s string) (Quantity, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	switch name {
	case "":
		return "", errors.New("empty quantity")
	case "temperature":
		return Temperature, nil
	case "feelslike":
		return FeelsLike, nil
	case observationTime:
		return "", errors.New("observation_time is the series key, not a quantity")
	}
	return Quantity(name), nil
}
