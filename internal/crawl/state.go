package crawl

import (
	"time"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// State is the crawl cursor. It is advanced only by Next.
type State struct {
	Date filing.Date
}

// Next returns the state for the following calendar day.
func Next(s State) State {
	return State{Date: s.Date.AddDays(1)}
}

// Yesterday is the day before now as observed in loc.
func Yesterday(now time.Time, loc *time.Location) filing.Date {
	return filing.DateOf(now, loc).AddDays(-1)
}

// Eligible reports whether the index for day is complete. The current
// exchange day never is.
func Eligible(day filing.Date, now time.Time, loc *time.Location) bool {
	return !day.After(Yesterday(now, loc))
}
