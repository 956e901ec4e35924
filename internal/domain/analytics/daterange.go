package analytics

import (
	"slices"
	"time"
)

// DateLayout is the wire format of calendar days
const DateLayout = "2006-01-02"

// PresetWindows are the rolling windows materialized by the preset job
var PresetWindows = []int{7, 30, 365}

// DateRange is an inclusive range of UTC calendar days
type DateRange struct {
	From time.Time
	To   time.Time
}

// TruncateDay returns midnight UTC of the calendar day t falls on in UTC
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDateRange truncates both bounds to UTC days and rejects from > to
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{From: TruncateDay(from), To: TruncateDay(to)}
	if r.From.After(r.To) {
		return DateRange{}, ErrInvalidDateRange
	}
	return r, nil
}

// SingleDay returns the range covering only the day of t
func SingleDay(t time.Time) DateRange {
	d := TruncateDay(t)
	return DateRange{From: d, To: d}
}

// EndExclusive is the first instant after the range
func (r DateRange) EndExclusive() time.Time {
	return r.To.AddDate(0, 0, 1)
}

// Days returns the number of calendar days covered
func (r DateRange) Days() int {
	return int(r.EndExclusive().Sub(r.From).Hours() / 24)
}

// Contains reports whether t falls on a day inside the range
func (r DateRange) Contains(t time.Time) bool {
	d := TruncateDay(t)
	return !d.Before(r.From) && !d.After(r.To)
}

// String renders the range as "from..to"
func (r DateRange) String() string {
	return r.From.Format(DateLayout) + ".." + r.To.Format(DateLayout)
}

// ValidatePreset rejects windows outside PresetWindows
func ValidatePreset(days int) error {
	if !slices.Contains(PresetWindows, days) {
		return ErrInvalidPreset
	}
	return nil
}

// PresetRange returns [asOf - days, asOf] for a valid preset window
func PresetRange(days int, asOf time.Time) (DateRange, error) {
	if err := ValidatePreset(days); err != nil {
		return DateRange{}, err
	}
	to := TruncateDay(asOf)
	return DateRange{From: to.AddDate(0, 0, -days), To: to}, nil
}
