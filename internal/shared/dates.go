package shared

import "time"

// LedgerEpoch is the floor for every point-in-time computation. Accounts
// carry their configured starting balance as of this instant.
var LedgerEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateOnly truncates t to midnight UTC. Balance dates and accounting days
// are always calendar days, never instants.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last nanosecond of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return DateOnly(t).Add(24*time.Hour - time.Nanosecond)
}
