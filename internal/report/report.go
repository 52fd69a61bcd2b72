// Package report renders sessions and archive queries as plain text for the
// terminal.
package report

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/stevenhcau/snowReport/internal/forecast"
	"github.com/stevenhcau/snowReport/internal/registry"
	"github.com/stevenhcau/snowReport/internal/resort"
	"github.com/stevenhcau/snowReport/internal/store"
)

const (
	timeLayout  = "2006-01-02 15:04:05 -07:00"
	unavailable = "n/a"
)

// WriteSnow prints the 4-day snow verdict for one location.
func WriteSnow(w io.Writer, r resort.SnowReport) error {
	var err error
	switch {
	case !r.Available:
		_, err = fmt.Fprintf(w, "%s: FORECAST UNAVAILABLE (%s)\n\n", r.Location.Name, r.Reason)
	case r.Present:
		_, err = fmt.Fprintf(w, "%s: SNOW IN THE NEXT 4 DAYS\n%.2f mm of snow\n\n", r.Location.Name, r.Accumulated)
	default:
		_, err = fmt.Fprintf(w, "%s: NO SNOW IN THE NEXT 4 DAYS\n\n", r.Location.Name)
	}
	return err
}

// WriteRealtime prints current conditions from the session's now horizon.
// Fields absent from the observation print as n/a.
func WriteRealtime(w io.Writer, s *resort.Session, zone *time.Location) error {
	name := s.Location().Name
	sample, err := s.Now()
	if errors.Is(err, resort.ErrNoData) {
		_, werr := fmt.Fprintf(w, "%s: REALTIME UNAVAILABLE (%v)\n\n", name, err)
		return werr
	}
	if err != nil {
		return err
	}

	observed := unavailable
	if t, err := sample.ObservationTime(zone); err == nil {
		observed = t.Format(timeLayout)
	}

	field := func(q forecast.Quantity, unit string) string {
		v, ok := sample.Value(q)
		if !ok || v.IsNull() {
			return unavailable
		}
		return v.String() + unit
	}

	conditions := unavailable
	if v, ok := sample.Value(forecast.WeatherCode); ok && !v.IsNull() {
		code := v.String()
		conditions = fmt.Sprintf("%s (%s)", forecast.DescribeCode(code), forecast.ConditionFromCode(code))
	}

	_, err = fmt.Fprintf(w,
		"Location: %s\n"+
			"Time: %s\n"+
			"Temperature: %s\n"+
			"Feels Like: %s\n"+
			"Precipitation: %s\n"+
			"Precipitation Type: %s\n"+
			"Wind Speed: %s\n"+
			"Wind Direction: %s (0° is North)\n"+
			"Cloud Cover: %s\n"+
			"Conditions: %s\n\n",
		name,
		observed,
		field(forecast.Temperature, "°C"),
		field(forecast.FeelsLike, "°C"),
		field(forecast.Precipitation, "mm"),
		field(forecast.PrecipitationType, ""),
		field(forecast.WindSpeed, "m/s"),
		field(forecast.WindDirection, "°"),
		field(forecast.CloudCover, "%"),
		conditions,
	)
	return err
}

// WriteSeries prints one "time<TAB>value" line per point, in series order.
func WriteSeries(w io.Writer, series *forecast.Series) error {
	for t, v := range series.All() {
		value := v.String()
		if v.IsNull() {
			value = unavailable
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", t.Format(timeLayout), value); err != nil {
			return err
		}
	}
	return nil
}

// WriteLocations prints registry entries as an aligned table.
func WriteLocations(w io.Writer, locs []registry.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tCOUNTRY\tLAT\tLON")
	for _, l := range locs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.Key, l.Name, l.Country, l.Lat, l.Lon)
	}
	return tw.Flush()
}

// WriteFailures prints failed fetch runs from the archive, newest first.
func WriteFailures(w io.Writer, runs []store.FetchRun, zone *time.Location) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no failed fetches")
		return err
	}
	if zone == nil {
		zone = time.Local
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLOCATION\tHORIZON\tSTATUS\tERROR")
	for _, r := range runs {
		status := "-"
		if r.HTTPStatus.Valid {
			status = fmt.Sprint(r.HTTPStatus.Int64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.FetchedAt.In(zone).Format(timeLayout), r.LocationKey, r.Horizon, status, r.ErrorMessage.String)
	}
	return tw.Flush()
}

// WriteHealth prints per-day fetch health summaries.
func WriteHealth(w io.Writer, health []store.FetchHealth) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tHORIZON\tRUNS\tOK\tFAILED\tSAMPLES")
	for _, h := range health {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", h.Date, h.Horizon, h.TotalRuns, h.SuccessRuns, h.FailedRuns, h.TotalSamples)
	}
	return tw.Flush()
}
