package enums

// BillingPeriod is the unit a plan's billing interval is counted in.
type BillingPeriod string

const (
	BillingPeriodWeekly  BillingPeriod = "weekly"
	BillingPeriodMonthly BillingPeriod = "monthly"
)

var billingPeriods = values[BillingPeriod]{BillingPeriodWeekly, BillingPeriodMonthly}

func (b BillingPeriod) IsValid() bool { return billingPeriods.has(b) }
