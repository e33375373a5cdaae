package enums

// InvoiceStatus is the payment state of one invoice. Only pending invoices
// move; every other status is final.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusFailed    InvoiceStatus = "failed"
	InvoiceStatusExpired   InvoiceStatus = "expired"
)

var invoiceStatuses = values[InvoiceStatus]{
	InvoiceStatusPending,
	InvoiceStatusPaid,
	InvoiceStatusCancelled,
	InvoiceStatusFailed,
	InvoiceStatusExpired,
}

func (s InvoiceStatus) IsValid() bool { return invoiceStatuses.has(s) }

func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	return invoiceStatuses.parse("invoice status", raw)
}
