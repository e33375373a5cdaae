package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (s *SubscriptionPlan) BeforeCreate(*gorm.DB) error { ensureID(&s.ID); return nil }
func (s *Subscription) BeforeCreate(*gorm.DB) error     { ensureID(&s.ID); return nil }
func (i *Invoice) BeforeCreate(*gorm.DB) error          { ensureID(&i.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error            { ensureID(&o.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error      { ensureID(&e.ID); return nil }
func (u *User) BeforeCreate(*gorm.DB) error             { ensureID(&u.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error        { ensureID(&d.ID); return nil }
