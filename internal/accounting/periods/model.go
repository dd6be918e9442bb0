package periods

import "time"

// Period represents one (month, year) fiscal window. Closing is terminal;
// reopening is an administrative override outside this module.
type Period struct {
	ID        int64
	Month     int
	Year      int
	IsClosed  bool
	ClosedAt  *time.Time
	ClosedBy  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether the supplied date falls inside the period.
func (p Period) Contains(date time.Time) bool {
	return int(date.Month()) == p.Month && date.Year() == p.Year
}
