package service

import "time"

// ist is India Standard Time. It has no daylight saving, so a fixed zone
// avoids depending on the tz database.
var ist = time.FixedZone("IST", 5*3600+30*60)

const statusLayout = "2006-01-02 15:04:05"

// Session status values.
const (
	SessionOpen       = "open"
	SessionClosed     = "closed"
	SessionPreMarket  = "pre-market"
	SessionAfterHours = "after-hours"
)

// MarketStatus returns the NSE session state at the current time.
func (s *Service) MarketStatus() MarketStatus {
	return marketStatusAt(s.now())
}

// marketStatusAt computes the session state for t. The regular session runs
// 09:15 to 15:30 IST on weekdays; exchange holidays are not modelled.
func marketStatusAt(t time.Time) MarketStatus {
	now := t.In(ist)
	open := sessionTime(now, 9, 15)
	close := sessionTime(now, 15, 30)

	st := MarketStatus{Timezone: "Asia/Kolkata"}
	switch {
	case isWeekend(now):
		st.Status, st.Reason = SessionClosed, "Weekend"
	case now.Before(open):
		st.Status, st.Reason = SessionPreMarket, "Before market hours"
	case now.After(close):
		st.Status, st.Reason = SessionAfterHours, "After market hours"
	default:
		st.Status, st.Reason = SessionOpen, "Market hours"
	}

	st.NextOpen = nextSessionTime(now, 9, 15).Format(statusLayout)
	st.NextClose = nextSessionTime(now, 15, 30).Format(statusLayout)
	return st
}

func sessionTime(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, ist)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// nextSessionTime returns the first weekday hour:minute that is not before now.
func nextSessionTime(now time.Time, hour, minute int) time.Time {
	next := sessionTime(now, hour, minute)
	if next.Before(now) {
		next = next.AddDate(0, 0, 1)
	}
	for isWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
