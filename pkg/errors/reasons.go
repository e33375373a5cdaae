package errors

// Reason is a stable, machine-readable cause attached to billing errors so
// callers can branch without parsing messages.
type Reason string

const (
	ReasonInvalidStatusTransition   Reason = "INVALID_STATUS_TRANSITION"
	ReasonInvalidStatus             Reason = "INVALID_STATUS"
	ReasonInvoiceAlreadyPaid        Reason = "INVOICE_ALREADY_PAID"
	ReasonInvoiceCancelled          Reason = "INVOICE_CANCELLED"
	ReasonSubscriptionTerminated    Reason = "SUBSCRIPTION_ALREADY_TERMINATED"
	ReasonInvalidSignature          Reason = "INVALID_SIGNATURE"
	ReasonPaymentGatewayError       Reason = "PAYMENT_GATEWAY_ERROR"
	ReasonPaymentMethodNotSupported Reason = "PAYMENT_METHOD_NOT_SUPPORTED"
	ReasonPlanUnavailable           Reason = "PLAN_UNAVAILABLE"
)

// NotFound reports a missing entity.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// InvalidTransition reports a state change the lifecycle rules reject.
func InvalidTransition(reason Reason, message string) *Error {
	return New(CodeStateConflict, message).WithReason(reason)
}

// AlreadyTerminal reports an operation against an entity that can no longer change.
func AlreadyTerminal(reason Reason, message string) *Error {
	return New(CodeConflict, message).WithReason(reason)
}

// InvalidSignature reports a notification whose signature failed verification.
func InvalidSignature() *Error {
	return New(CodeForbidden, "invalid notification signature").WithReason(ReasonInvalidSignature)
}

// PaymentGateway wraps a failure talking to the payment gateway.
func PaymentGateway(err error, message string) *Error {
	return Wrap(CodeDependency, err, message).WithReason(ReasonPaymentGatewayError)
}
