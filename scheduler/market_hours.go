package scheduler

import "time"

// MarketHoursGate restricts refresh runs to the trading calendar of
// the Vietnamese exchanges: Monday to Friday, 09:00-15:00 local time.
type MarketHoursGate struct {
	loc       *time.Location
	openHour  int
	closeHour int
}

// NewMarketHoursGate creates a gate for the Vietnamese market.
func NewMarketHoursGate() *MarketHoursGate {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		// Vietnam has no DST, the fixed offset is always correct.
		loc = time.FixedZone("ICT", 7*60*60)
	}
	return &MarketHoursGate{
		loc:       loc,
		openHour:  9,
		closeHour: 15,
	}
}

// IsOpen reports whether the market is trading at the given instant.
func (g *MarketHoursGate) IsOpen(now time.Time) bool {
	local := now.In(g.loc)

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}

	hour := local.Hour()
	return hour >= g.openHour && hour < g.closeHour
}
