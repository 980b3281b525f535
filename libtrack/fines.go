package libtrack

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultFinePerDay is the fallback daily fine rate in currency units.
var DefaultFinePerDay = decimal.NewFromInt(1)

// Fine computes the overdue fine for a loan due on dueDate as of today:
// max(0, days late) x ratePerDay. Both dates are compared at day granularity,
// so a same-day return is never fined.
func Fine(dueDate, today time.Time, ratePerDay decimal.Decimal) (amount decimal.Decimal, daysOverdue int) {
	due := truncateToDay(dueDate)
	now := truncateToDay(today)

	days := int(now.Sub(due).Hours() / 24)
	if days <= 0 {
		return decimal.Zero, 0
	}
	return ratePerDay.Mul(decimal.NewFromInt(int64(days))), days
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
