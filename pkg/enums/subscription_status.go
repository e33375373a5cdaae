package enums

// SubscriptionStatus is where a customer subscription sits in its lifecycle.
//
//	pending_initial_payment -> active <-> paused
//	any non-terminal        -> cancelled
//	active                  -> expired
type SubscriptionStatus string

const (
	SubscriptionStatusPendingInitialPayment SubscriptionStatus = "pending_initial_payment"
	SubscriptionStatusActive                SubscriptionStatus = "active"
	SubscriptionStatusPaused                SubscriptionStatus = "paused"
	SubscriptionStatusCancelled             SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired               SubscriptionStatus = "expired"
)

var subscriptionStatuses = values[SubscriptionStatus]{
	SubscriptionStatusPendingInitialPayment,
	SubscriptionStatusActive,
	SubscriptionStatusPaused,
	SubscriptionStatusCancelled,
	SubscriptionStatusExpired,
}

func (s SubscriptionStatus) IsValid() bool { return subscriptionStatuses.has(s) }

// IsTerminal reports whether the subscription can no longer change state.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

func ParseSubscriptionStatus(raw string) (SubscriptionStatus, error) {
	return subscriptionStatuses.parse("subscription status", raw)
}
