package aggregate

import "time"

// Market sessions for US equities, classified from the entry timestamp.
const (
	SessionPreMarket  = "PRE_MARKET"
	SessionRegular    = "REGULAR"
	SessionAfterHours = "AFTER_HOURS"
	SessionClosed     = "CLOSED"
)

// Session boundaries in minutes from midnight, exchange local time.
const (
	preMarketOpen = 4 * 60    // 04:00
	regularOpen   = 9*60 + 30 // 09:30
	regularClose  = 16 * 60   // 16:00
	afterHoursEnd = 20 * 60   // 20:00
)

// ClassifySession maps a timestamp onto the market-hours table. It is a pure
// function of the timestamp and location; no market calendar or holiday data
// is consulted.
func ClassifySession(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return SessionClosed
	}

	minutes := local.Hour()*60 + local.Minute()
	switch {
	case minutes >= preMarketOpen && minutes < regularOpen:
		return SessionPreMarket
	case minutes >= regularOpen && minutes < regularClose:
		return SessionRegular
	case minutes >= regularClose && minutes < afterHoursEnd:
		return SessionAfterHours
	default:
		return SessionClosed
	}
}
