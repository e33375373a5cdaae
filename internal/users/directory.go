// Package users reads customer identities owned by the auth service. It
// never writes them.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/internal/payments"
	"github.com/artisancrate/billing-engine/pkg/db/models"
)

// Directory resolves payer contact details for gateway transactions.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// Lookup returns nil, nil for unknown or deactivated customers, which makes
// the gateway request go out without customer details.
func (d *Directory) Lookup(ctx context.Context, customerID uuid.UUID) (*payments.Customer, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Select("id", "email", "first_name", "last_name", "phone", "is_active").
		Take(&user, "id = ?", customerID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load user %s: %w", customerID, err)
	case !user.IsActive:
		return nil, nil
	}

	customer := &payments.Customer{Name: user.FullName(), Email: user.Email}
	if user.Phone != nil {
		customer.Phone = *user.Phone
	}
	return customer, nil
}
