package kite

import "time"

// Kite access tokens are invalidated daily at 06:00 IST
var ist = time.FixedZone("IST", 5*60*60+30*60)

const resetHour = 6

// SessionExpiry returns the next token reset strictly after now
func SessionExpiry(now time.Time) time.Time {
	local := now.In(ist)
	reset := time.Date(local.Year(), local.Month(), local.Day(), resetHour, 0, 0, 0, ist)
	if !reset.After(local) {
		reset = reset.AddDate(0, 0, 1)
	}
	return reset
}
