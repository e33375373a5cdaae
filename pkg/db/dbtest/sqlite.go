// Package dbtest opens throwaway SQLite databases carrying the billing schema
// for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  phone TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS subscription_plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  billing_period TEXT NOT NULL,
  billing_interval INTEGER NOT NULL DEFAULT 1,
  price INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'IDR',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS user_subscriptions (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  shipping_address_id TEXT NOT NULL,
  start_date DATETIME NOT NULL,
  next_billing_date DATETIME,
  billing_period TEXT NOT NULL,
  billing_interval INTEGER NOT NULL DEFAULT 1,
  status TEXT NOT NULL,
  payment_method_type TEXT NOT NULL,
  cancelled_at DATETIME,
  paused_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  subscription_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  invoice_number TEXT NOT NULL,
  amount INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'IDR',
  billing_period_start DATETIME,
  billing_period_end DATETIME,
  status TEXT NOT NULL,
  due_date DATETIME,
  gateway_order_id TEXT,
  gateway_payment_link TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_invoice_number ON invoices (invoice_number);
CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_subscription_period ON invoices (subscription_id, billing_period_start);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  subscription_id TEXT NOT NULL,
  invoice_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  shipping_address_id TEXT NOT NULL,
  status TEXT NOT NULL,
  shipping_courier TEXT,
  tracking_number TEXT,
  shipping_date DATETIME,
  delivered_date DATETIME,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_invoice_id ON orders (invoice_id);
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);
CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);
`

// Open returns an in-memory database private to the calling test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// a single connection keeps transactions and reads from tripping shared-cache locks
	sqlDB.SetMaxOpenConns(1)
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
