// Package clock resolves wall-clock instants to the business's local civil
// time. The business zone is a fixed UTC offset; cutoff and delivery-date
// decisions are made in that zone, never in server-local time.
package clock

import "time"

// Clock supplies the current instant. Production code uses System; tests
// inject a fixed clock.
type Clock interface {
	Now() time.Time
}

// System reads the real time.
type System struct{}

// Now returns the current instant.
func (System) Now() time.Time { return time.Now() }

// Fixed always returns the same instant. Test helper.
type Fixed struct{ T time.Time }

// Now returns the fixed instant.
func (f Fixed) Now() time.Time { return f.T }

// Resolver converts instants to business-local civil time.
type Resolver struct {
	loc *time.Location
}

// NewResolver creates a resolver for a fixed UTC offset in hours.
func NewResolver(offsetHours int) *Resolver {
	return &Resolver{loc: time.FixedZone("business", offsetHours*3600)}
}

// Location returns the business zone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Local converts an instant to business-local time.
func (r *Resolver) Local(t time.Time) time.Time { return t.In(r.loc) }

// DateOf truncates an instant to its business-local calendar date,
// represented as midnight UTC of that date. Delivery dates are stored and
// compared in this form.
func (r *Resolver) DateOf(t time.Time) time.Time {
	y, m, d := t.In(r.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Tomorrow returns the calendar date after now's business-local date.
func (r *Resolver) Tomorrow(now time.Time) time.Time {
	return r.DateOf(now).AddDate(0, 0, 1)
}

// Weekday returns the weekday index (Sunday=0) of a calendar date.
func Weekday(date time.Time) int32 {
	return int32(date.Weekday())
}

// SameDate reports whether two calendar dates are the same day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// MonthBounds returns the first instant of the month and the first instant
// of the next month, as calendar dates.
func MonthBounds(month, year int) (start, end time.Time) {
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// PreviousMonth returns the month/year before now's business-local month.
func (r *Resolver) PreviousMonth(now time.Time) (month, year int) {
	local := r.Local(now)
	m, y := int(local.Month()), local.Year()
	if m == 1 {
		return 12, y - 1
	}
	return m - 1, y
}
