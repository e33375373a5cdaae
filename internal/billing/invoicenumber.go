package billing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	invoiceNumberPrefix = "INV"
	invoiceSuffixMin    = 100000
	invoiceSuffixSpan   = 900000
)

// InvoiceNumberFunc produces a human-readable invoice number for the given instant.
type InvoiceNumberFunc func(now time.Time) (string, error)

// NewInvoiceNumber renders INV-YYYYMMDD-NNNNNN using the UTC date of now and a
// random six digit suffix. Uniqueness is enforced by the database; callers
// retry on collision.
func NewInvoiceNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(invoiceSuffixSpan))
	if err != nil {
		return "", fmt.Errorf("generate invoice suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%06d", invoiceNumberPrefix, now.UTC().Format("20060102"), invoiceSuffixMin+n.Int64()), nil
}
