package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
		CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", DetailsAllowed: true},
		CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeInternal:      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
		"SOMETHING_ELSE":  {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
	}
	for code, want := range cases {
		require.Equal(t, want, MetadataFor(code), code)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "create snap transaction")
	require.ErrorIs(t, err, cause)
	require.Equal(t, CodeDependency, err.Code())
	require.Equal(t, "DEPENDENCY_ERROR: create snap transaction", err.Error())
	require.Nil(t, New(CodeValidation, "missing plan").Details())
}

func TestErrorfRecordsWrappedCause(t *testing.T) {
	cause := stdErrors.New("invalid UUID length: 3")
	err := Errorf(CodeValidation, "invalid %s: %w", "order id", cause)
	require.Equal(t, "invalid order id: invalid UUID length: 3", err.Message())
	require.ErrorIs(t, err, cause)

	require.NoError(t, Errorf(CodeNotFound, "invoice %d missing", 7).Unwrap())
}

func TestReasonSurvivesWrapping(t *testing.T) {
	err := InvalidTransition(ReasonInvalidStatusTransition, "cannot move order from shipped to cancelled")
	wrapped := fmt.Errorf("update order: %w", err)

	require.Equal(t, ReasonInvalidStatusTransition, ReasonOf(wrapped))
	require.True(t, IsCode(wrapped, CodeStateConflict))
	require.Equal(t, "STATE_CONFLICT(INVALID_STATUS_TRANSITION): cannot move order from shipped to cancelled", err.Error())
	require.Empty(t, ReasonOf(stdErrors.New("plain")))
	require.Nil(t, As(nil))
}

func TestIsMatchesCodeAndReason(t *testing.T) {
	paid := fmt.Errorf("pay: %w", AlreadyTerminal(ReasonInvoiceAlreadyPaid, "invoice INV-20240301-000001 is already paid"))

	require.ErrorIs(t, paid, New(CodeConflict, ""))
	require.ErrorIs(t, paid, AlreadyTerminal(ReasonInvoiceAlreadyPaid, ""))
	require.NotErrorIs(t, paid, AlreadyTerminal(ReasonInvoiceCancelled, ""))
	require.NotErrorIs(t, paid, New(CodeNotFound, ""))
}

func TestDomainConstructors(t *testing.T) {
	cases := []struct {
		err    *Error
		code   Code
		reason Reason
	}{
		{AlreadyTerminal(ReasonInvoiceAlreadyPaid, "invoice already paid"), CodeConflict, ReasonInvoiceAlreadyPaid},
		{InvalidSignature(), CodeForbidden, ReasonInvalidSignature},
		{PaymentGateway(stdErrors.New("timeout"), "create transaction"), CodeDependency, ReasonPaymentGatewayError},
		{NotFound("invoice not found"), CodeNotFound, ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.code, tc.err.Code(), tc.err.Error())
		require.Equal(t, tc.reason, tc.err.Reason(), tc.err.Error())
	}
}

func TestLogFieldsIncludesPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_invoices_invoice_number", TableName: "invoices"}
	fields := LogFields(Wrap(CodeConflict, fmt.Errorf("insert invoice: %w", pgErr), "duplicate invoice number"))

	require.Equal(t, string(CodeConflict), fields["error_code"])
	require.Equal(t, "23505", fields["pg_code"])
	require.Equal(t, "ux_invoices_invoice_number", fields["pg_constraint"])
	require.NotContains(t, fields, "pg_column")
	require.GreaterOrEqual(t, len(fields["error_chain"].([]string)), 2)
}

func TestLogFieldsPlainError(t *testing.T) {
	require.Equal(t, map[string]any{"error": "boom"}, LogFields(stdErrors.New("boom")))
	require.Empty(t, LogFields(nil))
}
