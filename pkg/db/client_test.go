package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

type ledgerRow struct {
	ID     int
	Number string `gorm:"uniqueIndex:ux_ledger_rows_number"`
}

func openSQLite(t *testing.T, opts *gorm.Config) *gorm.DB {
	t.Helper()
	if opts == nil {
		opts = &gorm.Config{SkipDefaultTransaction: true}
	}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), opts)
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&ledgerRow{}))
	return conn
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOnlyOnSuccess(t *testing.T) {
	conn := openSQLite(t, nil)
	client := NewFromGorm(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Number: "INV-20240101-000001"}).Error
	}))
	require.EqualValues(t, 1, countRows(t, conn))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&ledgerRow{Number: "INV-20240101-000002"}).Error; err != nil {
			return err
		}
		return errors.New("gateway unavailable")
	})
	require.EqualError(t, err, "gateway unavailable")
	require.EqualValues(t, 1, countRows(t, conn))
}

func TestWithTxRollsBackAndRepanics(t *testing.T) {
	conn := openSQLite(t, nil)
	client := NewFromGorm(conn)

	require.PanicsWithValue(t, "boom", func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&ledgerRow{Number: "INV-20240101-000003"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	})
	require.Zero(t, countRows(t, conn))
}

func TestNewRejectsMissingDSNAndUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	require.Error(t, err)
	_, err = New(context.Background(), config.DBConfig{DSN: "x", Driver: "mysql"}, nil)
	require.ErrorContains(t, err, "unsupported db driver")
}

func TestNewOpensSQLite(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{DSN: "file::memory:", Driver: config.DriverSQLite, MaxOpenConns: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()))
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf, Level: logger.ParseLevel("info")})
	conn := openSQLite(t, &gorm.Config{Logger: newQueryLogger(logg, time.Nanosecond)})

	require.NoError(t, conn.Create(&ledgerRow{Number: "INV-20240101-000004"}).Error)
	require.Contains(t, buf.String(), `"message":"slow query"`)
	require.Contains(t, buf.String(), "INSERT INTO")

	buf.Reset()
	require.Error(t, conn.Exec("SELECT * FROM missing_table").Error)
	require.Contains(t, buf.String(), `"message":"query failed"`)

	buf.Reset()
	require.Error(t, conn.Create(&ledgerRow{Number: "INV-20240101-000004"}).Error)
	require.NotContains(t, buf.String(), "query failed")
}

func TestIsUniqueViolation(t *testing.T) {
	conn := openSQLite(t, nil)
	require.NoError(t, conn.Create(&ledgerRow{Number: "dup"}).Error)
	require.True(t, IsUniqueViolation(conn.Create(&ledgerRow{Number: "dup"}).Error, ""))

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_invoices_invoice_number"}
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "ux_invoices_invoice_number"))
	require.False(t, IsUniqueViolation(pgErr, "ux_orders_invoice_id"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	require.False(t, IsUniqueViolation(nil, ""))
}

func TestForUpdateSkipsSQLite(t *testing.T) {
	var rows []ledgerRow
	require.NoError(t, ForUpdate(openSQLite(t, nil)).Find(&rows).Error)
}
