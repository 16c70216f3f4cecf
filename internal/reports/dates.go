package reports

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseAsOf reads an RFC 3339 instant or a date. A bare date resolves to the
// last instant of that day in UTC so the whole day is included.
func ParseAsOf(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("reports: invalid date %q", raw)
	}
	return EndOfDay(d), nil
}

// ParseStart reads an RFC 3339 instant or a date resolved to midnight UTC.
func ParseStart(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("reports: invalid date %q", raw)
	}
	return d.UTC(), nil
}

// EndOfDay returns the last representable instant of t's UTC day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

// DateRange is an inclusive period.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRange) validate(label string) error {
	if r.Start.IsZero() || r.End.IsZero() {
		return invalidInput("%s start and end dates are required", label)
	}
	if r.End.Before(r.Start) {
		return invalidInput("%s end date precedes start date", label)
	}
	return nil
}

func (r DateRange) key() string {
	return r.Start.UTC().Format(time.RFC3339Nano) + "_" + r.End.UTC().Format(time.RFC3339Nano)
}
