// Package period models the trading-fee billing frequencies and their
// calendar boundaries. A fee period is only valid when it covers exactly
// one whole billing period of the investor's configured frequency.
package period

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is a closed set of billing frequencies.
type Frequency int

const (
	Monthly Frequency = iota
	Quarterly
	Semestral
	Annual
)

func (f Frequency) String() string {
	switch f {
	case Monthly:
		return "MONTHLY"
	case Quarterly:
		return "QUARTERLY"
	case Semestral:
		return "SEMESTRAL"
	case Annual:
		return "ANNUAL"
	default:
		return "UNKNOWN"
	}
}

// Parse converts a stored frequency string to a Frequency.
func Parse(s string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MONTHLY":
		return Monthly, nil
	case "QUARTERLY":
		return Quarterly, nil
	case "SEMESTRAL":
		return Semestral, nil
	case "ANNUAL":
		return Annual, nil
	default:
		return Monthly, fmt.Errorf("unknown frequency %q", s)
	}
}

// Containing returns the inclusive [start, end] calendar period of this
// frequency that contains the date d. Times are truncated to dates in d's
// location.
func (f Frequency) Containing(d time.Time) (start, end time.Time) {
	y, m, _ := d.Date()
	loc := d.Location()

	switch f {
	case Monthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, -1)
	case Quarterly:
		qm := time.Month(((int(m)-1)/3)*3 + 1)
		start = time.Date(y, qm, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 3, -1)
	case Semestral:
		sm := time.January
		if m >= time.July {
			sm = time.July
		}
		start = time.Date(y, sm, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 6, -1)
	case Annual:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(1, 0, -1)
	}
	return start, end
}

// Matches reports whether [start, end] is exactly one calendar period of
// this frequency.
func (f Frequency) Matches(start, end time.Time) bool {
	wantStart, wantEnd := f.Containing(start)
	return sameDate(start, wantStart) && sameDate(end, wantEnd)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
