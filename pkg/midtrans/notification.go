package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Notification is the subset of the HTTP notification body the billing
// engine acts on. Other gateway fields are ignored.
type Notification struct {
	OrderID           string `json:"order_id" validate:"required"`
	StatusCode        string `json:"status_code" validate:"required"`
	GrossAmount       string `json:"gross_amount" validate:"required"`
	SignatureKey      string `json:"signature_key" validate:"required"`
	TransactionStatus string `json:"transaction_status" validate:"required"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	TransactionID     string `json:"transaction_id,omitempty"`
	PaymentType       string `json:"payment_type,omitempty"`
}

// Signature computes hex(SHA-512(order_id + status_code + gross_amount + serverKey)).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares the notification's signature_key against the
// expected digest in constant time.
func VerifySignature(serverKey string, n Notification) bool {
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	given := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// ParseGrossAmount reads the decimal gross_amount string, e.g. "120000.00".
func ParseGrossAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse gross_amount %q: %w", value, err)
	}
	return amount, nil
}

// ReplayKey identifies a byte-identical notification delivery.
func (n Notification) ReplayKey() string {
	return n.OrderID + ":" + n.TransactionStatus + ":" + n.StatusCode
}
