package enums

// TransactionStatus is the gateway-reported state of a payment transaction.
type TransactionStatus string

const (
	TransactionStatusCapture    TransactionStatus = "capture"
	TransactionStatusSettlement TransactionStatus = "settlement"
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusDeny       TransactionStatus = "deny"
	TransactionStatusCancel     TransactionStatus = "cancel"
	TransactionStatusExpire     TransactionStatus = "expire"
)

// FraudStatus is the gateway's fraud screening verdict for a transaction.
type FraudStatus string

const (
	FraudStatusAccept    FraudStatus = "accept"
	FraudStatusChallenge FraudStatus = "challenge"
	FraudStatusDeny      FraudStatus = "deny"
)

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// String implements fmt.Stringer.
func (f FraudStatus) String() string {
	return string(f)
}
