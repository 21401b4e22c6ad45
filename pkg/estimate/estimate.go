// Package estimate computes deterministic lead estimates: a monetary value
// from service category and urgency, and a target completion date. Both
// functions are pure; the clock is injected for testability.
package estimate

import "time"

// Urgency tiers recognized by the intake forms. Anything else is treated
// as routine.
const (
	UrgencyImmediate = "immediate"
	UrgencyThisWeek  = "this-week"
)

// BaselineValue is the estimated value for categories not in the table.
const BaselineValue = 1500.0

var baseValues = map[string]float64{
	"postpartum-care":   2500,
	"birth-support":     3200,
	"lactation-support": 900,
	"newborn-care":      1800,
	"sleep-consulting":  1200,
}

// Value returns the estimated monetary value for a service category and
// urgency tier.
func Value(category, urgency string) float64 {
	base, ok := baseValues[category]
	if !ok {
		base = BaselineValue
	}

	switch urgency {
	case UrgencyImmediate:
		return base * 1.5
	case UrgencyThisWeek:
		return base * 1.2
	default:
		return base
	}
}

// TargetDate returns the calendar date service should begin by. Immediate
// urgency targets three days out and this-week seven; otherwise the target
// is thirty days before the reference date (a due date, typically), or two
// weeks out when no reference date is known.
func TargetDate(now time.Time, referenceDate *time.Time, urgency string) time.Time {
	var target time.Time

	switch {
	case urgency == UrgencyImmediate:
		target = now.AddDate(0, 0, 3)
	case urgency == UrgencyThisWeek:
		target = now.AddDate(0, 0, 7)
	case referenceDate != nil:
		target = referenceDate.AddDate(0, 0, -30)
	default:
		target = now.AddDate(0, 0, 14)
	}

	return time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
}
