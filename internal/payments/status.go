package payments

import "github.com/artisancrate/billing-engine/pkg/enums"

// MapStatus translates a gateway transaction/fraud status pair into the
// invoice status it implies. Unknown transaction statuses keep current.
func MapStatus(transaction enums.TransactionStatus, fraud enums.FraudStatus, current enums.InvoiceStatus) enums.InvoiceStatus {
	switch transaction {
	case enums.TransactionStatusCapture, enums.TransactionStatusSettlement:
		if fraud != "" && fraud != enums.FraudStatusAccept {
			return enums.InvoiceStatusPending
		}
		return enums.InvoiceStatusPaid
	case enums.TransactionStatusDeny:
		return enums.InvoiceStatusFailed
	case enums.TransactionStatusCancel, enums.TransactionStatusExpire:
		return enums.InvoiceStatusExpired
	case enums.TransactionStatusPending:
		return enums.InvoiceStatusPending
	default:
		return current
	}
}
