package billing

import (
	"fmt"
	"time"

	"github.com/artisancrate/billing-engine/pkg/dates"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
)

// ValidateCycle rejects billing cadences that cannot produce a forward-moving
// schedule. It runs when subscriptions are created, never during billing.
func ValidateCycle(period enums.BillingPeriod, interval int) error {
	if !period.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported billing period %q", period))
	}
	if interval < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "billing interval must be at least 1")
	}
	return nil
}

// PeriodEnd returns the inclusive last day of the period starting at start.
// A monthly plan starting 2024-02-01 ends 2024-02-29.
func PeriodEnd(start time.Time, period enums.BillingPeriod, interval int) time.Time {
	return dates.AddDays(advance(dates.DateOf(start), period, interval), -1)
}

// NextBillingDate returns the date one full cycle after anchor.
func NextBillingDate(anchor time.Time, period enums.BillingPeriod, interval int) time.Time {
	return advance(dates.DateOf(anchor), period, interval)
}

func advance(from time.Time, period enums.BillingPeriod, interval int) time.Time {
	// rows that slipped past validation must still move forward
	if interval < 1 {
		interval = 1
	}
	if period == enums.BillingPeriodWeekly {
		return dates.AddWeeks(from, interval)
	}
	return dates.AddMonths(from, interval)
}
