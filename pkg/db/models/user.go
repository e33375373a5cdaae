package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the customer identity owned by the auth service. Billing reads it
// to prefill the payer on the hosted payment page.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email     string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	FirstName string    `gorm:"column:first_name;not null"`
	LastName  string    `gorm:"column:last_name;not null"`
	Phone     *string   `gorm:"column:phone"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// FullName joins the first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
