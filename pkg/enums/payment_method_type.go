package enums

// PaymentMethodType is how a subscription's invoices get paid. Only the
// payment link flow is implemented; card tokens are accepted on input and
// rejected by the subscription service.
type PaymentMethodType string

const (
	PaymentMethodTypeManualPaymentLink PaymentMethodType = "manual_payment_link"
	PaymentMethodTypeCreditCardToken   PaymentMethodType = "credit_card_token"
)

var paymentMethodTypes = values[PaymentMethodType]{
	PaymentMethodTypeManualPaymentLink,
	PaymentMethodTypeCreditCardToken,
}

func (p PaymentMethodType) IsValid() bool { return paymentMethodTypes.has(p) }

func ParsePaymentMethodType(raw string) (PaymentMethodType, error) {
	return paymentMethodTypes.parse("payment method type", raw)
}
