// -----------------------------------------------------------------------
// Query window - derives the "issues since" instant for a run
// -----------------------------------------------------------------------

package common

import "time"

// QueryWindow is the lower bound of a polling run: the job-start local
// date moved back numberOfDaysToQuery days, anchored at startHour:00:00.000
// local time.
type QueryWindow struct {
	Local time.Time
	UTC   time.Time
}

// NewQueryWindow derives the window from a reference instant. The day is
// shifted first, then the wall clock is pinned, so DST transitions follow
// the local calendar rather than a fixed 24h multiple.
func NewQueryWindow(now time.Time, daysBack, startHour int) QueryWindow {
	base := now.AddDate(0, 0, -daysBack)
	local := time.Date(base.Year(), base.Month(), base.Day(), startHour, 0, 0, 0, now.Location())
	return QueryWindow{
		Local: local,
		UTC:   local.UTC(),
	}
}

// UnixSeconds renders the window for the Stack Exchange fromdate parameter.
func (w QueryWindow) UnixSeconds() int64 {
	return w.UTC.Unix()
}

// ISO8601 renders the window for the GitHub search "created:>" qualifier,
// without trailing milliseconds.
func (w QueryWindow) ISO8601() string {
	return w.UTC.Format("2006-01-02T15:04:05Z")
}
